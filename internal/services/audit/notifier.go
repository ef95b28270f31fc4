package audit

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Notifier forwards non-clean reports to administrators.
type Notifier interface {
	Notify(ctx context.Context, r Report) error
}

// LogNotifier writes each finding as a structured log line.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, r Report) error {
	for _, f := range r.Findings {
		log.WithFields(log.Fields{
			"user_id":   r.UserID,
			"kind":      f.Kind,
			"currency":  f.Currency,
			"node_id":   f.NodeID,
			"expected":  f.Expected,
			"actual":    f.Actual,
			"diff":      f.Diff(),
			"corrected": r.Corrected,
		}).Warn("audit finding")
	}

	return nil
}
