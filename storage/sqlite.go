package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rentradar/models"
)

// SQLiteStore is the local ops store: sweep runs, their logs, pending
// daemon commands and per-source aggregates. It is deliberately separate
// from the Postgres listing store so the daemon stays operable when the
// main database is unreachable.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweep_runs (
		id INTEGER PRIMARY KEY,
		university TEXT NOT NULL,
		source TEXT NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		scraped INTEGER DEFAULT 0,
		with_details INTEGER DEFAULT 0,
		scored INTEGER DEFAULT 0,
		with_commute INTEGER DEFAULT 0,
		saved INTEGER DEFAULT 0,
		reused_details INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		export_file TEXT
	);

	CREATE TABLE IF NOT EXISTS sweep_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		university TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS source_stats (
		source TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON sweep_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON sweep_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.SweepRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO sweep_runs (university, source, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.University, run.Source, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.SweepRun) error {
	_, err := s.db.Exec(`
		UPDATE sweep_runs SET finished_at = ?, status = ?, scraped = ?, with_details = ?,
			scored = ?, with_commute = ?, saved = ?, reused_details = ?, errors_count = ?, export_file = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Scraped, run.WithDetails,
		run.Scored, run.WithCommute, run.Saved, run.ReusedDetails, run.ErrorsCount, run.ExportFile,
		run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, university string) error {
	_, err := s.db.Exec(`
		INSERT INTO sweep_logs (run_id, timestamp, level, message, university)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, university)
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// EnqueueCommand lets subcommands hand work to a running daemon.
func (s *SQLiteStore) EnqueueCommand(command string, params *models.CommandParams) error {
	var raw []byte
	if params != nil {
		raw, _ = json.Marshal(params)
	}
	_, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, command, raw)
	return err
}

// UpdateSourceStats recomputes one source's aggregates from its run
// history.
func (s *SQLiteStore) UpdateSourceStats(source string) error {
	_, err := s.db.Exec(`
		INSERT INTO source_stats (source, last_run_at, last_run_status, total_runs, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM sweep_runs WHERE source = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM sweep_runs WHERE source = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM sweep_runs WHERE source = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM sweep_runs WHERE source = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM sweep_runs WHERE source = ? AND finished_at IS NOT NULL)
		ON CONFLICT(source) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = excluded.total_runs,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		source, source, source, source, source, source)
	return err
}

func (s *SQLiteStore) GetSourceStats(source string) (*models.SourceStats, error) {
	row := s.db.QueryRow(`
		SELECT source, last_run_at, last_run_status, total_runs, success_rate, avg_run_duration_sec
		FROM source_stats WHERE source = ?`, source)

	var stats models.SourceStats
	var lastRunAt sql.NullTime
	var status sql.NullString
	var successRate sql.NullFloat64
	var avgDuration sql.NullInt64
	err := row.Scan(&stats.Source, &lastRunAt, &status, &stats.TotalRuns, &successRate, &avgDuration)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRunAt.Valid {
		stats.LastRunAt = &lastRunAt.Time
	}
	stats.LastRunStatus = status.String
	stats.SuccessRate = successRate.Float64
	stats.AvgRunDurationSec = int(avgDuration.Int64)
	return &stats, nil
}

func (s *SQLiteStore) GetLastRunTime(source string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT last_run_at FROM source_stats WHERE source = ?`, source).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun, err
}
