package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"rentradar/config"
	"rentradar/export"
	"rentradar/history"
	"rentradar/models"
	"rentradar/scraper"
	"rentradar/services"
	"rentradar/storage"
	"rentradar/vpn"
)

// sourceURLPrefix scopes the delisting sweep to one portal's rows.
var sourceURLPrefix = map[models.Source]string{
	models.SourceDomain:     "https://www.domain.com.au",
	models.SourceRealEstate: "https://www.realestate.com.au",
}

// siblingOf maps a university to the one whose listing set it shares. The
// sibling's export is reused instead of scraping the same areas twice.
var siblingOf = map[string]string{
	"UTS": "USYD",
}

// Options selects what a run covers. Zero values mean everything.
type Options struct {
	Universities []string
	Sources      []models.Source

	NoDetails  bool
	NoScoring  bool
	NoCommute  bool
	NoDatabase bool
}

func (o *Options) normalise() {
	if len(o.Universities) == 0 {
		o.Universities = models.Universities
	}
	if len(o.Sources) == 0 {
		o.Sources = []models.Source{models.SourceDomain, models.SourceRealEstate}
	}
}

// Pipeline drives full sweeps: scrape, enrich, reconcile, export. Stages
// run sequentially per (university, source); worker pools live inside the
// scoring and commute services.
type Pipeline struct {
	cfg     *config.Config
	ops     *storage.SQLiteStore
	db      *storage.PostgresStore
	archive *storage.S3Archiver
	tunnel  *vpn.ExpressVPN
}

// New wires a pipeline. db, archive and tunnel may be nil; the matching
// stages are skipped.
func New(cfg *config.Config, ops *storage.SQLiteStore, db *storage.PostgresStore, archive *storage.S3Archiver, tunnel *vpn.ExpressVPN) *Pipeline {
	return &Pipeline{cfg: cfg, ops: ops, db: db, archive: archive, tunnel: tunnel}
}

// Run executes one sweep per (university, source) pair. Sweeps never
// overlap; a failed sweep does not stop the remaining ones.
func (p *Pipeline) Run(ctx context.Context, opts Options) error {
	opts.normalise()

	scorer, planner, err := p.buildServices(ctx, &opts)
	if err != nil {
		return err
	}
	if planner != nil {
		defer planner.Stop()
	}

	var errs []error
	for _, university := range opts.Universities {
		if ctx.Err() != nil {
			break
		}

		if sibling, ok := siblingOf[university]; ok {
			if err := p.runSibling(ctx, opts, university, sibling, planner); err != nil {
				log.Printf("Sweep failed [%s from %s]: %v", university, sibling, err)
				errs = append(errs, fmt.Errorf("%s: %w", university, err))
			}
			continue
		}

		for _, source := range opts.Sources {
			if ctx.Err() != nil {
				break
			}
			if err := p.runSweep(ctx, opts, university, source, scorer, planner); err != nil {
				log.Printf("Sweep failed [%s/%s]: %v", university, source, err)
				errs = append(errs, fmt.Errorf("%s/%s: %w", university, source, err))
			}
		}
	}
	return errors.Join(errs...)
}

// buildServices constructs the scoring and commute services the enabled
// stages need. Missing credentials for a requested stage are a startup
// error, not a mid-sweep surprise.
func (p *Pipeline) buildServices(ctx context.Context, opts *Options) (*services.Scorer, *services.CommutePlanner, error) {
	var scorer *services.Scorer
	if !opts.NoScoring {
		if p.cfg.Scoring.Enabled() {
			scorer = services.NewScorer(p.cfg.Scoring)
		} else {
			log.Println("Scoring disabled: no API key configured")
			opts.NoScoring = true
		}
	}

	var planner *services.CommutePlanner
	if !opts.NoCommute {
		if p.cfg.Commute.Enabled() {
			var err error
			planner, err = services.NewCommutePlanner(ctx, p.cfg.Commute)
			if err != nil {
				return nil, nil, fmt.Errorf("commute planner: %w", err)
			}
		} else {
			log.Println("Commute disabled: no API key configured")
			opts.NoCommute = true
		}
	}
	return scorer, planner, nil
}

// runSweep is the LIST through EXPORT state machine for one pair. A stage
// failure writes a checkpoint CSV of whatever is in memory and aborts the
// sweep; per-item failures inside a stage only bump counters.
func (p *Pipeline) runSweep(ctx context.Context, opts Options, university string, source models.Source, scorer *services.Scorer, planner *services.CommutePlanner) error {
	started := time.Now()
	run := &models.SweepRun{
		University: university,
		Source:     string(source),
		StartedAt:  started,
		Status:     models.RunStatusRunning,
	}
	if p.ops != nil {
		if id, err := p.ops.CreateRun(run); err == nil {
			run.ID = id
		} else {
			log.Printf("Failed to record sweep run: %v", err)
		}
	}

	log.Printf("=== Sweep start: %s / %s ===", university, source)
	props, err := p.sweepStages(ctx, opts, university, source, scorer, planner, run)
	p.finishRun(run, props, err)
	if err != nil {
		p.checkpoint(university, props)
		return err
	}

	p.printSummary(university, source, run)
	return nil
}

func (p *Pipeline) sweepStages(ctx context.Context, opts Options, university string, source models.Source, scorer *services.Scorer, planner *services.CommutePlanner, run *models.SweepRun) ([]*models.Property, error) {
	areas := p.cfg.Areas[university]
	if len(areas) == 0 {
		return nil, fmt.Errorf("no areas configured for %s", university)
	}

	// LIST
	collector := scraper.NewCollector(p.cfg.Scraper, scraper.AdapterFor(source))
	if p.tunnel != nil {
		collector.SetBeforeArea(func(area string) {
			if err := p.tunnel.Rotate(); err != nil {
				log.Printf("VPN rotation failed before %s: %v", area, err)
			}
		})
	}

	props, err := collector.ScrapeAreas(ctx, areas)
	if err != nil {
		return props, fmt.Errorf("list stage: %w", err)
	}
	props = dedupe(props)
	run.Scraped = len(props)
	p.logRun(run, models.LogLevelInfo, fmt.Sprintf("list stage: %d unique properties", len(props)))

	if parts, err := export.WriteListParts(p.cfg.OutputDir, university, source, props, p.cfg.Scraper.ChunkSize); err != nil {
		log.Printf("Failed to write list parts: %v", err)
	} else if parts > 0 {
		log.Printf("Wrote %d list part files", parts)
	}

	// REUSE
	hist := history.Load(p.cfg.OutputDir, university)
	reuse := hist.Apply(props)
	run.ReusedDetails = reuse.Details

	// LIST_MERGE
	mergedPath := export.MergedListPath(p.cfg.OutputDir, university, source, run.StartedAt)
	if err := export.WriteMergedList(mergedPath, props); err != nil {
		log.Printf("Failed to write merged list: %v", err)
	}

	// DETAIL
	if !opts.NoDetails {
		if err := collector.ScrapeDetails(ctx, props, true); err != nil {
			return props, fmt.Errorf("detail stage: %w", err)
		}
	}
	for _, prop := range props {
		if prop.HasDetail() {
			run.WithDetails++
		}
	}

	// SCORE
	if scorer != nil {
		stats := scorer.ScoreAll(ctx, props)
		run.Scored = stats.Scored
		run.ErrorsCount += stats.Failed
	}

	// COMMUTE
	if planner != nil {
		planner.ComputeAll(ctx, props, university)
	}
	for _, prop := range props {
		if minutes, ok := prop.CommuteFor(university); ok && minutes > 0 {
			run.WithCommute++
		}
	}

	// PERSIST
	if p.db != nil && !opts.NoDatabase {
		saved, err := p.persist(ctx, props, university, []models.Source{source})
		if err != nil {
			return props, fmt.Errorf("persist stage: %w", err)
		}
		run.Saved = saved.Inserted + saved.Updated
		run.ErrorsCount += saved.Failed
	}

	// EXPORT
	exportPath := export.ExportPath(p.cfg.OutputDir, university, time.Now())
	if err := export.Write(exportPath, props); err != nil {
		return props, fmt.Errorf("export stage: %w", err)
	}
	run.ExportFile = exportPath
	log.Printf("Export written: %s (%d rows)", exportPath, len(props))
	p.archiveExport(ctx, exportPath)

	return props, nil
}

// runSibling builds one university's sweep from another's finished export:
// same properties, own commute times, own DB rows and export file.
func (p *Pipeline) runSibling(ctx context.Context, opts Options, university, sibling string, planner *services.CommutePlanner) error {
	run := &models.SweepRun{
		University: university,
		Source:     "shared:" + sibling,
		StartedAt:  time.Now(),
		Status:     models.RunStatusRunning,
	}
	if p.ops != nil {
		if id, err := p.ops.CreateRun(run); err == nil {
			run.ID = id
		}
	}

	log.Printf("=== Sweep start: %s (from %s export) ===", university, sibling)
	props, err := p.siblingStages(ctx, opts, university, sibling, planner, run)
	p.finishRun(run, props, err)
	if err != nil {
		p.checkpoint(university, props)
		return err
	}

	p.printSummary(university, models.Source("shared:"+sibling), run)
	return nil
}

func (p *Pipeline) siblingStages(ctx context.Context, opts Options, university, sibling string, planner *services.CommutePlanner, run *models.SweepRun) ([]*models.Property, error) {
	path, modTime, err := export.LatestExport(p.cfg.OutputDir, sibling)
	if err != nil || path == "" {
		return nil, fmt.Errorf("no %s export to derive %s from", sibling, university)
	}
	if time.Since(modTime) > history.MaxAge {
		return nil, fmt.Errorf("%s export too old to derive %s from: %s", sibling, university, path)
	}

	props, err := export.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read sibling export: %w", err)
	}
	run.Scraped = len(props)
	log.Printf("Loaded %d properties from %s", len(props), path)

	// Own history carries this university's commute times forward.
	hist := history.Load(p.cfg.OutputDir, university)
	reuse := hist.Apply(props)
	run.ReusedDetails = reuse.Details

	for _, prop := range props {
		if prop.HasDetail() {
			run.WithDetails++
		}
	}

	if planner != nil {
		planner.ComputeAll(ctx, props, university)
	}
	for _, prop := range props {
		if minutes, ok := prop.CommuteFor(university); ok && minutes > 0 {
			run.WithCommute++
		}
	}

	if p.db != nil && !opts.NoDatabase {
		saved, err := p.persist(ctx, props, university, opts.Sources)
		if err != nil {
			return props, fmt.Errorf("persist stage: %w", err)
		}
		run.Saved = saved.Inserted + saved.Updated
		run.ErrorsCount += saved.Failed
	}

	exportPath := export.ExportPath(p.cfg.OutputDir, university, time.Now())
	if err := export.Write(exportPath, props); err != nil {
		return props, fmt.Errorf("export stage: %w", err)
	}
	run.ExportFile = exportPath
	log.Printf("Export written: %s (%d rows)", exportPath, len(props))
	p.archiveExport(ctx, exportPath)

	return props, nil
}

// persist runs the delisting sweep then the upserts. Delisting commits
// first in its own transactions so a later upsert failure cannot leave
// ghosts deleted but survivors unsaved in the same batch.
func (p *Pipeline) persist(ctx context.Context, props []*models.Property, university string, sources []models.Source) (storage.SaveStats, error) {
	schoolID, err := p.db.EnsureSchool(ctx, university)
	if err != nil {
		return storage.SaveStats{}, fmt.Errorf("ensure school: %w", err)
	}

	for _, source := range sources {
		prefix := sourceURLPrefix[source]
		if prefix == "" {
			continue
		}

		seen := make(map[string]bool)
		for _, prop := range props {
			if prop.Source == source {
				seen[prop.HouseID] = true
			}
		}

		refs, err := p.db.FindDelisted(ctx, prefix, schoolID, seen)
		if err != nil {
			return storage.SaveStats{}, fmt.Errorf("find delisted: %w", err)
		}
		if len(refs) == 0 {
			continue
		}

		if !p.confirmDelete(len(refs), university, source) {
			log.Printf("Delisting skipped for %s/%s (%d candidates)", university, source, len(refs))
			continue
		}

		stats, err := p.db.DeleteDelisted(ctx, refs, schoolID)
		if err != nil {
			return storage.SaveStats{}, fmt.Errorf("delete delisted: %w", err)
		}
		log.Printf("Delisting [%s/%s]: %d school links removed, %d properties deleted",
			university, source, stats.UnlinkedSchools, stats.DeletedProperties)
	}

	return p.db.SaveProperties(ctx, props, university)
}

// confirmDelete asks the operator before a delisting sweep removes rows.
// Non-interactive runs skip deletion unless AUTO_DELETE_DELISTED is set.
func (p *Pipeline) confirmDelete(count int, university string, source models.Source) bool {
	if p.cfg.AutoDeleteDelisted {
		return true
	}

	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		log.Printf("Delisting needs confirmation but stdin is not a terminal; skipping %d deletions", count)
		return false
	}

	fmt.Printf("About to delete %d delisted properties for %s/%s. Proceed? [y/N] ", count, university, source)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// ProcessCSV replays the enrichment stages over an existing export instead
// of scraping: score, commute, persist, export.
func (p *Pipeline) ProcessCSV(ctx context.Context, path, university string, opts Options) error {
	opts.normalise()

	props, err := export.Read(path)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	log.Printf("Processing %d properties from %s for %s", len(props), path, university)

	scorer, planner, err := p.buildServices(ctx, &opts)
	if err != nil {
		return err
	}
	if planner != nil {
		defer planner.Stop()
	}

	if scorer != nil {
		scorer.ScoreAll(ctx, props)
	}
	if planner != nil {
		planner.ComputeAll(ctx, props, university)
	}

	if p.db != nil && !opts.NoDatabase {
		if _, err := p.persist(ctx, props, university, opts.Sources); err != nil {
			p.checkpoint(university, props)
			return err
		}
	}

	exportPath := export.ExportPath(p.cfg.OutputDir, university, time.Now())
	if err := export.Write(exportPath, props); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Printf("Export written: %s", exportPath)
	p.archiveExport(ctx, exportPath)
	return nil
}

// checkpoint dumps in-memory state so a failed sweep can be replayed with
// process-csv.
func (p *Pipeline) checkpoint(university string, props []*models.Property) {
	if len(props) == 0 {
		return
	}
	path := export.CheckpointPath(p.cfg.OutputDir, university, time.Now())
	if err := export.Write(path, props); err != nil {
		log.Printf("Failed to write checkpoint: %v", err)
		return
	}
	log.Printf("Checkpoint written: %s (%d rows)", path, len(props))
}

func (p *Pipeline) archiveExport(ctx context.Context, path string) {
	if p.archive == nil {
		return
	}
	key, err := p.archive.ArchiveExport(ctx, path)
	if err != nil {
		log.Printf("Failed to archive export: %v", err)
		return
	}
	log.Printf("Export archived: %s", p.archive.PublicURL(key))
}

func (p *Pipeline) finishRun(run *models.SweepRun, props []*models.Property, err error) {
	now := time.Now()
	run.FinishedAt = &now
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		p.logRun(run, models.LogLevelError, err.Error())
	} else {
		run.Status = models.RunStatusCompleted
	}

	if p.ops == nil || run.ID == 0 {
		return
	}
	if err := p.ops.UpdateRun(run); err != nil {
		log.Printf("Failed to update sweep run: %v", err)
	}
	if err := p.ops.UpdateSourceStats(run.Source); err != nil {
		log.Printf("Failed to update source stats: %v", err)
	}
}

func (p *Pipeline) logRun(run *models.SweepRun, level models.LogLevel, message string) {
	log.Printf("[%s/%s] %s", run.University, run.Source, message)
	if p.ops == nil || run.ID == 0 {
		return
	}
	if err := p.ops.Log(&run.ID, level, message, run.University); err != nil {
		log.Printf("Failed to write sweep log: %v", err)
	}
}

func (p *Pipeline) printSummary(university string, source models.Source, run *models.SweepRun) {
	elapsed := time.Duration(0)
	if run.FinishedAt != nil {
		elapsed = run.FinishedAt.Sub(run.StartedAt).Round(time.Second)
	}
	log.Printf("=== Sweep done: %s / %s (%s) ===", university, source, elapsed)
	log.Printf("  scraped:       %d", run.Scraped)
	log.Printf("  with details:  %d (reused %d)", run.WithDetails, run.ReusedDetails)
	log.Printf("  scored:        %d", run.Scored)
	log.Printf("  with commute:  %d", run.WithCommute)
	log.Printf("  saved:         %d", run.Saved)
	log.Printf("  errors:        %d", run.ErrorsCount)
	if run.ExportFile != "" {
		log.Printf("  export:        %s", run.ExportFile)
	}
}

// dedupe drops repeated house IDs, keeping first occurrence. Pagination
// overlap makes duplicates routine.
func dedupe(props []*models.Property) []*models.Property {
	seen := make(map[string]bool, len(props))
	out := props[:0]
	for _, p := range props {
		key := string(p.Source) + "|" + p.HouseID
		if p.HouseID == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
