package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rentradar/config"
	"rentradar/models"
	"rentradar/pipeline"
	"rentradar/storage"
)

// Triggerable is a background worker that can be poked to run a batch now.
type Triggerable interface {
	Trigger()
}

// Scheduler runs sweeps on a cron expression or fixed interval and polls
// the ops store's command queue so subcommands can steer a live daemon.
type Scheduler struct {
	cfg    *config.Config
	pipe   *pipeline.Pipeline
	ops    *storage.SQLiteStore
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	mu      sync.Mutex
	paused  bool
	running bool

	thumbsWorker      Triggerable
	healthcheckWorker Triggerable
}

func New(cfg *config.Config, pipe *pipeline.Pipeline, ops *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		pipe:   pipe,
		ops:    ops,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering.
func (s *Scheduler) SetWorkers(thumbs, healthcheck Triggerable) {
	s.thumbsWorker = thumbs
	s.healthcheckWorker = healthcheck
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.scheduledRun(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.scheduledRun(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs a full sweep immediately, bypassing the pause gate.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.runSweeps(ctx, pipeline.Options{})
}

func (s *Scheduler) scheduledRun(ctx context.Context) {
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if paused {
		log.Println("Scheduler paused, skipping scheduled run")
		return
	}

	if err := s.runSweeps(ctx, pipeline.Options{}); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

// runSweeps serialises sweep execution. The browser and the Postgres
// connection scope both assume one sweep at a time.
func (s *Scheduler) runSweeps(ctx context.Context, opts pipeline.Options) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("A sweep is already running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return s.pipe.Run(ctx, opts)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.ops.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for i := range cmds {
				cmd := &cmds[i]
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.ops.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunNow:
		go func() {
			if err := s.runSweeps(ctx, pipeline.Options{}); err != nil {
				log.Printf("Commanded run error: %v", err)
			}
		}()
		return nil

	case models.CmdRunUniversity:
		params, err := s.ops.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("bad command params: %w", err)
		}
		if !models.IsUniversity(params.University) {
			return fmt.Errorf("unknown university: %q", params.University)
		}
		opts := pipeline.Options{Universities: []string{params.University}}
		if params.Source != "" {
			opts.Sources = []models.Source{models.ParseSource(params.Source)}
		}
		go func() {
			if err := s.runSweeps(ctx, opts); err != nil {
				log.Printf("Commanded run error [%s]: %v", params.University, err)
			}
		}()
		return nil

	case models.CmdRunThumbs:
		if s.thumbsWorker != nil {
			s.thumbsWorker.Trigger()
			log.Println("Thumbnail worker triggered via command")
		}
		return nil

	case models.CmdRunHealthcheck:
		if s.healthcheckWorker != nil {
			s.healthcheckWorker.Trigger()
			log.Println("Healthcheck worker triggered via command")
		}
		return nil

	case models.CmdPause:
		s.mu.Lock()
		s.paused = true
		s.mu.Unlock()
		log.Println("Scheduler paused")
		return nil

	case models.CmdResume:
		s.mu.Lock()
		s.paused = false
		s.mu.Unlock()
		log.Println("Scheduler resumed")
		return nil

	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
