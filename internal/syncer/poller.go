package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"draftsync/internal/errs"
	"draftsync/internal/gitback"
)

// Poller periodically checks how far the remote is ahead of or behind the
// local branch. A poll that coincides with a user-triggered operation is
// skipped rather than queued.
type Poller struct {
	session  *SyncSession
	interval time.Duration
	onUpdate func(status *gitback.Status)
	logger   *zap.Logger
}

func NewPoller(s *SyncSession, interval time.Duration, onUpdate func(*gitback.Status), logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		session:  s,
		interval: interval,
		onUpdate: onUpdate,
		logger:   logger,
	}
}

// Start runs the poll loop until the context is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	status, err := p.session.CheckRemote(ctx)
	if err != nil {
		if errs.IsKind(err, errs.KindBusy) {
			p.logger.Debug("poll skipped, sync in flight")
		} else {
			p.logger.Warn("remote check failed", zap.Error(err))
		}
		return
	}

	p.logger.Debug("remote checked",
		zap.Int("ahead", status.AheadCount),
		zap.Int("behind", status.BehindCount),
	)
	if p.onUpdate != nil {
		p.onUpdate(status)
	}
}
