package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentradar/models"
)

// Column caps mirror the front end's schema; longer values are truncated
// on write rather than rejected.
const (
	maxAddressLen     = 60
	maxKeywordsLen    = 255
	maxDescriptionLen = 1024
	maxURLLen         = 255
)

const saveBatchSize = 100

type PostgresStore struct {
	pool *pgxpool.Pool
}

// dbtx is the querying surface shared by the pool and a transaction, so
// the same row writers serve both batched and autocommit paths.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema creates the relational schema when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		state VARCHAR(10) NOT NULL DEFAULT 'NSW',
		postcode INTEGER NOT NULL DEFAULT 0,
		UNIQUE (name, state, postcode)
	);

	CREATE TABLE IF NOT EXISTS schools (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(10) NOT NULL UNIQUE,
		name VARCHAR(100) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS properties (
		id BIGSERIAL PRIMARY KEY,
		house_id VARCHAR(32) NOT NULL UNIQUE,
		source VARCHAR(16) NOT NULL,
		price_per_week INTEGER NOT NULL DEFAULT 0,
		address_line1 VARCHAR(60),
		address_line2 VARCHAR(60),
		region_id BIGINT REFERENCES regions(id),
		bedroom_count INTEGER NOT NULL DEFAULT 0,
		bathroom_count INTEGER NOT NULL DEFAULT 0,
		parking_count INTEGER NOT NULL DEFAULT 0,
		property_type INTEGER NOT NULL DEFAULT 5,
		description_en VARCHAR(1024),
		description_cn VARCHAR(1024),
		keywords VARCHAR(255),
		average_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		available_date DATE,
		published_at TIMESTAMPTZ,
		url VARCHAR(255),
		thumbnail_url TEXT,
		last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS property_school (
		property_id BIGINT NOT NULL REFERENCES properties(id),
		school_id BIGINT NOT NULL REFERENCES schools(id),
		commute_time INTEGER,
		PRIMARY KEY (property_id, school_id)
	);

	CREATE TABLE IF NOT EXISTS property_images (
		id UUID PRIMARY KEY,
		property_id BIGINT NOT NULL REFERENCES properties(id),
		original_url TEXT NOT NULL,
		s3_key TEXT,
		content_hash VARCHAR(64),
		display_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (property_id, original_url)
	);

	CREATE INDEX IF NOT EXISTS idx_properties_url ON properties(url);
	CREATE INDEX IF NOT EXISTS idx_properties_region ON properties(region_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// =============================================================================
// Regions
// =============================================================================

// EnsureRegion resolves a locality triple to a region ID. Exact match
// first. A triple without a postcode (suburb-only area slugs) may instead
// bind to an existing region by suburb prefix, since the portals disagree
// on compound suburb names; each fuzzy hit is logged for later cleanup. A
// brand-new locality is inserted as-is, postcode 0 included.
func (s *PostgresStore) EnsureRegion(ctx context.Context, info *models.RegionInfo) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM regions WHERE name = $1 AND state = $2 AND postcode = $3`,
		info.Name, info.State, info.Postcode,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}

	if info.Postcode == 0 {
		var fuzzyName string
		err = s.pool.QueryRow(ctx,
			`SELECT id, name FROM regions WHERE state = $2 AND name LIKE $1 || '%' ORDER BY postcode DESC LIMIT 1`,
			info.Name, info.State,
		).Scan(&id, &fuzzyName)
		if err == nil {
			log.Printf("Region fuzzy match: %q -> existing %q (id %d)",
				info.Name, fuzzyName, id)
			return id, nil
		}
		if err != pgx.ErrNoRows {
			return 0, err
		}
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO regions (name, state, postcode) VALUES ($1, $2, $3) RETURNING id`,
		info.Name, info.State, info.Postcode,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create region %q: %w", info.Name, err)
	}
	return id, nil
}

// =============================================================================
// Schools
// =============================================================================

// EnsureSchool resolves a university code to its row, creating it with the
// full institutional name on first use.
func (s *PostgresStore) EnsureSchool(ctx context.Context, code string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM schools WHERE code = $1`, code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}

	name, ok := models.SchoolNames[code]
	if !ok {
		return 0, fmt.Errorf("unknown school code %q", code)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO schools (code, name) VALUES ($1, $2)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		code, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create school %s: %w", code, err)
	}
	return id, nil
}

// =============================================================================
// Properties
// =============================================================================

// storedProperty carries the comparable columns of an existing row.
type storedProperty struct {
	id           int64
	pricePerWeek int
	bedrooms     int
	bathrooms    int
	parking      int
	propertyType int
	description  string
	keywords     string
	averageScore float64
	url          string
	thumbnail    string
}

// UpsertResult reports what an upsert did to the row.
type UpsertResult int

const (
	UpsertInserted UpsertResult = iota
	UpsertUpdated
	UpsertUnchanged
)

// UpsertProperty writes a property keyed on house_id. Existing rows are
// only rewritten when a tracked field actually changed, so updated_at
// stays meaningful.
func (s *PostgresStore) UpsertProperty(ctx context.Context, q dbtx, p *models.Property, regionID *int64) (int64, UpsertResult, error) {
	var existing storedProperty
	err := q.QueryRow(ctx, `
		SELECT id, price_per_week, bedroom_count, bathroom_count, parking_count,
			property_type, COALESCE(description_en, ''), COALESCE(keywords, ''),
			average_score, COALESCE(url, ''), COALESCE(thumbnail_url, '')
		FROM properties WHERE house_id = $1`, p.HouseID,
	).Scan(
		&existing.id, &existing.pricePerWeek, &existing.bedrooms, &existing.bathrooms,
		&existing.parking, &existing.propertyType, &existing.description, &existing.keywords,
		&existing.averageScore, &existing.url, &existing.thumbnail,
	)

	if err == pgx.ErrNoRows {
		var id int64
		err = q.QueryRow(ctx, `
			INSERT INTO properties (
				house_id, source, price_per_week, address_line1, address_line2, region_id,
				bedroom_count, bathroom_count, parking_count, property_type,
				description_en, description_cn, keywords, average_score,
				available_date, published_at, url, thumbnail_url, last_seen_at, is_active
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, NOW(), TRUE
			)
			RETURNING id`,
			p.HouseID, string(p.Source), p.PricePerWeek,
			truncate(p.AddressLine1, maxAddressLen), truncate(p.AddressLine2, maxAddressLen), regionID,
			p.BedroomCount, p.BathroomCount, p.ParkingCount, p.PropertyType,
			truncate(p.DescriptionEN, maxDescriptionLen), truncate(p.DescriptionCN, maxDescriptionLen),
			truncate(p.Keywords, maxKeywordsLen), p.AverageScore,
			p.AvailableDate, p.PublishedAt, truncate(p.URL, maxURLLen), p.ThumbnailURL,
		).Scan(&id)
		if err != nil {
			return 0, UpsertUnchanged, fmt.Errorf("insert property %s: %w", p.HouseID, err)
		}
		return id, UpsertInserted, nil
	}
	if err != nil {
		return 0, UpsertUnchanged, err
	}

	changed := existing.pricePerWeek != p.PricePerWeek ||
		existing.bedrooms != p.BedroomCount ||
		existing.bathrooms != p.BathroomCount ||
		existing.parking != p.ParkingCount ||
		existing.propertyType != p.PropertyType ||
		(p.HasDetail() && existing.description != truncate(p.DescriptionEN, maxDescriptionLen)) ||
		(p.Keywords != "" && existing.keywords != truncate(p.Keywords, maxKeywordsLen)) ||
		(p.AverageScore != 0 && existing.averageScore != p.AverageScore) ||
		(p.URL != "" && existing.url != truncate(p.URL, maxURLLen)) ||
		(p.ThumbnailURL != "" && existing.thumbnail != p.ThumbnailURL)

	if !changed {
		_, err = q.Exec(ctx,
			`UPDATE properties SET last_seen_at = NOW(), is_active = TRUE WHERE id = $1`,
			existing.id)
		return existing.id, UpsertUnchanged, err
	}

	_, err = q.Exec(ctx, `
		UPDATE properties SET
			source = $2,
			price_per_week = $3,
			address_line1 = $4,
			address_line2 = $5,
			region_id = COALESCE($6, region_id),
			bedroom_count = $7,
			bathroom_count = $8,
			parking_count = $9,
			property_type = $10,
			description_en = COALESCE(NULLIF($11, ''), description_en),
			description_cn = COALESCE(NULLIF($12, ''), description_cn),
			keywords = COALESCE(NULLIF($13, ''), keywords),
			average_score = CASE WHEN $14 <> 0 THEN $14 ELSE average_score END,
			available_date = COALESCE($15, available_date),
			published_at = COALESCE($16, published_at),
			url = COALESCE(NULLIF($17, ''), url),
			thumbnail_url = COALESCE(NULLIF($18, ''), thumbnail_url),
			last_seen_at = NOW(),
			is_active = TRUE,
			updated_at = NOW()
		WHERE id = $1`,
		existing.id, string(p.Source), p.PricePerWeek,
		truncate(p.AddressLine1, maxAddressLen), truncate(p.AddressLine2, maxAddressLen), regionID,
		p.BedroomCount, p.BathroomCount, p.ParkingCount, p.PropertyType,
		truncate(p.DescriptionEN, maxDescriptionLen), truncate(p.DescriptionCN, maxDescriptionLen),
		truncate(p.Keywords, maxKeywordsLen), p.AverageScore,
		p.AvailableDate, p.PublishedAt, truncate(p.URL, maxURLLen), p.ThumbnailURL,
	)
	if err != nil {
		return 0, UpsertUnchanged, fmt.Errorf("update property %s: %w", p.HouseID, err)
	}
	return existing.id, UpsertUpdated, nil
}

// ReplacePropertySchool rewrites the property's link to one school. Delete
// then insert keeps the commute value authoritative for today's sweep.
func (s *PostgresStore) ReplacePropertySchool(ctx context.Context, q dbtx, propertyID, schoolID int64, commuteMinutes *int) error {
	_, err := q.Exec(ctx,
		`DELETE FROM property_school WHERE property_id = $1 AND school_id = $2`,
		propertyID, schoolID)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx,
		`INSERT INTO property_school (property_id, school_id, commute_time) VALUES ($1, $2, $3)`,
		propertyID, schoolID, commuteMinutes)
	return err
}

// SaveStats summarises one persistence pass.
type SaveStats struct {
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int
}

func (st *SaveStats) add(o SaveStats) {
	st.Inserted += o.Inserted
	st.Updated += o.Updated
	st.Unchanged += o.Unchanged
	st.Skipped += o.Skipped
	st.Failed += o.Failed
}

// SaveProperties persists a sweep's properties and links them to the
// university's school row. Rows are committed in transactions of
// saveBatchSize; a failure rolls back only its batch, which is then
// replayed row by row so one bad row cannot sink its neighbours.
func (s *PostgresStore) SaveProperties(ctx context.Context, props []*models.Property, university string) (SaveStats, error) {
	var stats SaveStats

	schoolID, err := s.EnsureSchool(ctx, university)
	if err != nil {
		return stats, err
	}

	regionIDs := make(map[string]int64)

	for start := 0; start < len(props); start += saveBatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := start + saveBatchSize
		if end > len(props) {
			end = len(props)
		}
		batch := props[start:end]

		batchStats, err := s.saveBatch(ctx, batch, university, schoolID, regionIDs)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Printf("Batch of %d rolled back: %v; replaying row by row", len(batch), err)
			batchStats, _ = s.saveRows(ctx, s.pool, batch, university, schoolID, regionIDs, true)
		}
		stats.add(batchStats)
		log.Printf("Saved %d/%d properties", end, len(props))
	}

	log.Printf("Save done [%s]: %d inserted, %d updated, %d unchanged, %d skipped, %d failed",
		university, stats.Inserted, stats.Updated, stats.Unchanged, stats.Skipped, stats.Failed)
	return stats, nil
}

// saveBatch commits one batch atomically.
func (s *PostgresStore) saveBatch(ctx context.Context, batch []*models.Property, university string, schoolID int64, regionIDs map[string]int64) (SaveStats, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SaveStats{}, err
	}

	stats, err := s.saveRows(ctx, tx, batch, university, schoolID, regionIDs, false)
	if err != nil {
		tx.Rollback(ctx)
		return SaveStats{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SaveStats{}, err
	}
	return stats, nil
}

// saveRows writes rows through q. With skipErrors each failing row is
// logged and counted; otherwise the first failure aborts so the caller can
// roll back.
func (s *PostgresStore) saveRows(ctx context.Context, q dbtx, batch []*models.Property, university string, schoolID int64, regionIDs map[string]int64, skipErrors bool) (SaveStats, error) {
	var stats SaveStats
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.saveRow(ctx, q, p, university, schoolID, regionIDs, &stats); err != nil {
			if !skipErrors {
				return stats, fmt.Errorf("property %s: %w", p.HouseID, err)
			}
			log.Printf("Save failed for %s: %v", p.HouseID, err)
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *PostgresStore) saveRow(ctx context.Context, q dbtx, p *models.Property, university string, schoolID int64, regionIDs map[string]int64, stats *SaveStats) error {
	// A property without a resolvable region is never written; orphan rows
	// with no region_id would be invisible to every suburb-scoped query.
	info := models.ParseRegion(p.AddressLine2)
	if info == nil {
		log.Printf("No region in %q for %s; skipping", p.AddressLine2, p.HouseID)
		stats.Skipped++
		return nil
	}

	// Regions resolve outside the batch transaction: they are create-only,
	// so a stray row from a rolled-back batch is harmless and the cache
	// stays valid.
	key := fmt.Sprintf("%s|%s|%d", info.Name, info.State, info.Postcode)
	regionID, ok := regionIDs[key]
	if !ok {
		var err error
		regionID, err = s.EnsureRegion(ctx, info)
		if err != nil {
			return fmt.Errorf("resolve region: %w", err)
		}
		regionIDs[key] = regionID
	}

	propertyID, result, err := s.UpsertProperty(ctx, q, p, &regionID)
	if err != nil {
		return err
	}
	switch result {
	case UpsertInserted:
		stats.Inserted++
	case UpsertUpdated:
		stats.Updated++
	default:
		stats.Unchanged++
	}

	var commute *int
	if minutes, ok := p.CommuteFor(university); ok && minutes > 0 {
		commute = &minutes
	}
	if err := s.ReplacePropertySchool(ctx, q, propertyID, schoolID, commute); err != nil {
		return fmt.Errorf("link school: %w", err)
	}
	return nil
}

// =============================================================================
// Delisting
// =============================================================================

// PropertyRef identifies a stored property during sweeps.
type PropertyRef struct {
	ID      int64
	HouseID string
	URL     string
}

// FindDelisted returns stored properties linked to the school whose URL
// belongs to the portal (by prefix) but whose house_id was absent from
// today's sweep. Scoping by URL keeps one portal's sweep from delisting
// the other portal's rows; scoping by school keeps a university's sweep
// from touching links it never owned.
func (s *PostgresStore) FindDelisted(ctx context.Context, urlPrefix string, schoolID int64, seen map[string]bool) ([]PropertyRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.house_id, COALESCE(p.url, '')
		FROM properties p
		JOIN property_school ps ON ps.property_id = p.id
		WHERE ps.school_id = $2 AND p.url LIKE $1 || '%'`,
		urlPrefix, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stored []PropertyRef
	for rows.Next() {
		var ref PropertyRef
		if err := rows.Scan(&ref.ID, &ref.HouseID, &ref.URL); err != nil {
			return nil, err
		}
		stored = append(stored, ref)
	}
	return filterDelisted(stored, seen), rows.Err()
}

// filterDelisted keeps the stored rows whose house_id was not observed in
// today's sweep.
func filterDelisted(stored []PropertyRef, seen map[string]bool) []PropertyRef {
	var gone []PropertyRef
	for _, ref := range stored {
		if !seen[ref.HouseID] {
			gone = append(gone, ref)
		}
	}
	return gone
}

// DelistStats summarises one delisting sweep.
type DelistStats struct {
	UnlinkedSchools   int
	DeletedProperties int
}

// DeleteDelisted removes the school link for each delisted property and
// drops the property outright once no school references it. Runs in
// batches so a large sweep cannot hold long transactions.
func (s *PostgresStore) DeleteDelisted(ctx context.Context, refs []PropertyRef, schoolID int64) (DelistStats, error) {
	var stats DelistStats

	for start := 0; start < len(refs); start += saveBatchSize {
		end := start + saveBatchSize
		if end > len(refs) {
			end = len(refs)
		}

		ids := make([]int64, 0, end-start)
		for _, ref := range refs[start:end] {
			ids = append(ids, ref.ID)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return stats, err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM property_school WHERE property_id = ANY($1) AND school_id = $2`,
			ids, schoolID)
		if err != nil {
			tx.Rollback(ctx)
			return stats, fmt.Errorf("unlink delisted batch: %w", err)
		}
		stats.UnlinkedSchools += int(tag.RowsAffected())

		_, err = tx.Exec(ctx, `
			DELETE FROM property_images WHERE property_id = ANY($1)
				AND NOT EXISTS (SELECT 1 FROM property_school ps WHERE ps.property_id = property_images.property_id)`,
			ids)
		if err != nil {
			tx.Rollback(ctx)
			return stats, fmt.Errorf("delete delisted images: %w", err)
		}

		tag, err = tx.Exec(ctx, `
			DELETE FROM properties WHERE id = ANY($1)
				AND NOT EXISTS (SELECT 1 FROM property_school ps WHERE ps.property_id = properties.id)`,
			ids)
		if err != nil {
			tx.Rollback(ctx)
			return stats, fmt.Errorf("delete delisted batch: %w", err)
		}
		stats.DeletedProperties += int(tag.RowsAffected())

		if err := tx.Commit(ctx); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// =============================================================================
// Healthcheck and media queries
// =============================================================================

// StaleActiveProperties lists active rows not seen by a sweep recently,
// oldest first, for the URL healthcheck worker.
func (s *PostgresStore) StaleActiveProperties(ctx context.Context, staleFor time.Duration, limit int) ([]PropertyRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, house_id, COALESCE(url, '') FROM properties
		WHERE is_active AND last_seen_at < $1 AND url <> ''
		ORDER BY last_seen_at
		LIMIT $2`,
		time.Now().Add(-staleFor), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []PropertyRef
	for rows.Next() {
		var ref PropertyRef
		if err := rows.Scan(&ref.ID, &ref.HouseID, &ref.URL); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// MarkInactive flags a property whose detail URL no longer resolves.
func (s *PostgresStore) MarkInactive(ctx context.Context, propertyID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE properties SET is_active = FALSE, updated_at = NOW() WHERE id = $1`,
		propertyID)
	return err
}

// MarkSeen refreshes last_seen_at after a healthcheck confirmed the URL.
func (s *PostgresStore) MarkSeen(ctx context.Context, propertyID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE properties SET last_seen_at = NOW() WHERE id = $1`,
		propertyID)
	return err
}

// PendingImage is a thumbnail awaiting mirror to object storage.
type PendingImage struct {
	PropertyID int64
	URL        string
}

// PendingThumbnails lists active properties with a portal thumbnail that
// has no mirrored property_images row yet.
func (s *PostgresStore) PendingThumbnails(ctx context.Context, limit int) ([]PendingImage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.thumbnail_url FROM properties p
		WHERE p.is_active AND p.thumbnail_url <> ''
			AND NOT EXISTS (
				SELECT 1 FROM property_images pi
				WHERE pi.property_id = p.id AND pi.original_url = p.thumbnail_url
			)
		ORDER BY p.updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingImage
	for rows.Next() {
		var img PendingImage
		if err := rows.Scan(&img.PropertyID, &img.URL); err != nil {
			return nil, err
		}
		pending = append(pending, img)
	}
	return pending, rows.Err()
}

// InsertPropertyImage records a mirrored thumbnail.
func (s *PostgresStore) InsertPropertyImage(ctx context.Context, propertyID int64, originalURL, s3Key, contentHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO property_images (id, property_id, original_url, s3_key, content_hash, display_order)
		VALUES ($1, $2, $3, $4, $5, 0)
		ON CONFLICT (property_id, original_url) DO UPDATE SET
			s3_key = COALESCE(EXCLUDED.s3_key, property_images.s3_key),
			content_hash = COALESCE(EXCLUDED.content_hash, property_images.content_hash)`,
		uuid.New(), propertyID, originalURL, s3Key, contentHash)
	return err
}

// truncate caps s at max characters. Counting runes rather than bytes
// keeps Chinese descriptions intact; a byte slice could split a rune and
// hand Postgres invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
