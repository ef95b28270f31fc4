package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fastprodman/matrixledger/internal/config"
	"github.com/fastprodman/matrixledger/internal/services/audit"
)

type fakeAuditor struct {
	runs    atomic.Int32
	correct atomic.Bool
	err     error
}

func (f *fakeAuditor) AuditAll(_ context.Context, correct bool) ([]audit.Report, error) {
	f.runs.Add(1)
	f.correct.Store(correct)

	return []audit.Report{{UserID: 1}}, f.err
}

type fakeDrainer struct {
	runs  atomic.Int32
	limit atomic.Int32
}

func (f *fakeDrainer) DrainPending(_ context.Context, limit int) (int, error) {
	f.runs.Add(1)
	f.limit.Store(int32(limit))

	return 0, nil
}

func TestNewScheduler_BadTimezone(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultAudit()
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err := NewScheduler(cfg, &fakeAuditor{}, &fakeDrainer{})
	if err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestScheduler_BadSpec(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(config.DefaultAudit(), &fakeAuditor{}, &fakeDrainer{})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	err = s.Start(t.Context(), "every tuesday", "@every 1m")
	if err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultAudit()
	cfg.AutoCorrect = true

	aud := &fakeAuditor{}
	dr := &fakeDrainer{}

	s, err := NewScheduler(cfg, aud, dr)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	err = s.Start(t.Context(), "@every 1s", "@every 1s")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for aud.runs.Load() == 0 || dr.runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs did not run: audit %d drain %d", aud.runs.Load(), dr.runs.Load())
		}

		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	err = s.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if !aud.correct.Load() {
		t.Fatal("auto-correct not forwarded to the audit")
	}
	if dr.limit.Load() != drainBatch {
		t.Fatalf("drain limit: want %d, got %d", drainBatch, dr.limit.Load())
	}
}

func TestScheduler_AuditErrorIsLogged(t *testing.T) {
	t.Parallel()

	aud := &fakeAuditor{err: errors.New("db down")}

	s, err := NewScheduler(config.DefaultAudit(), aud, &fakeDrainer{})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	// must not panic
	s.runAudit(t.Context())

	if aud.runs.Load() != 1 {
		t.Fatalf("audit runs: %d", aud.runs.Load())
	}
}
