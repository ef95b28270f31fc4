// Package jobs runs the periodic audit sweep and the cascade outbox drain.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/config"
	"github.com/fastprodman/matrixledger/internal/services/audit"
)

const drainBatch = 500

type AuditRunner interface {
	AuditAll(ctx context.Context, correct bool) ([]audit.Report, error)
}

type Drainer interface {
	DrainPending(ctx context.Context, limit int) (int, error)
}

// Scheduler owns a cron instance. A job still running when its next tick
// arrives is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	auditor AuditRunner
	drainer Drainer
	correct bool
}

// NewScheduler parses the timezone and both schedules up front so a bad
// configuration fails at startup.
func NewScheduler(cfg config.AuditConfig, auditor AuditRunner, drainer Drainer) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	logger := cron.PrintfLogger(log.StandardLogger())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		auditor: auditor,
		drainer: drainer,
		correct: cfg.AutoCorrect,
	}

	return s, nil
}

// Start registers the jobs and starts the cron loop. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context, auditSpec, drainSpec string) error {
	_, err := s.cron.AddFunc(auditSpec, func() { s.runAudit(ctx) })
	if err != nil {
		return fmt.Errorf("schedule audit %q: %w", auditSpec, err)
	}

	_, err = s.cron.AddFunc(drainSpec, func() { s.runDrain(ctx) })
	if err != nil {
		return fmt.Errorf("schedule drain %q: %w", drainSpec, err)
	}

	s.cron.Start()

	log.WithFields(log.Fields{
		"audit_schedule": auditSpec,
		"drain_schedule": drainSpec,
		"location":       s.cron.Location().String(),
	}).Info("scheduler started")

	return nil
}

// Stop prevents new runs and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		log.Info("scheduler stopped")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) runAudit(ctx context.Context) {
	start := time.Now()

	reports, err := s.auditor.AuditAll(ctx, s.correct)
	if err != nil {
		log.WithError(err).Error("scheduled audit failed")

		return
	}

	dirty := 0
	for _, r := range reports {
		if !r.Clean() {
			dirty++
		}
	}

	log.WithFields(log.Fields{
		"users":    len(reports),
		"dirty":    dirty,
		"duration": time.Since(start).String(),
	}).Info("scheduled audit finished")
}

func (s *Scheduler) runDrain(ctx context.Context) {
	n, err := s.drainer.DrainPending(ctx, drainBatch)
	if err != nil {
		log.WithError(err).WithField("applied", n).Error("outbox drain failed")

		return
	}

	if n > 0 {
		log.WithField("applied", n).Info("outbox drained")
	}
}
