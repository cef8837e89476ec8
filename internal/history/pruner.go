package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner deletes expired runs on a cron schedule.
type Pruner struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
	logger    *zap.Logger
}

// NewPruner schedules pruning of runs older than retention. The schedule is
// a standard 5-field cron expression, e.g. "0 3 * * *" for 3am daily.
func NewPruner(store *Store, retention time.Duration, schedule string, logger *zap.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	p := &Pruner{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		logger:    logger.Named("history"),
	}
	if _, err := p.cron.AddFunc(strings.TrimSpace(schedule), p.run); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins the schedule in the background.
func (p *Pruner) Start() {
	p.cron.Start()
	p.logger.Info("History pruning scheduled", zap.Duration("retention", p.retention))
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

// PruneNow deletes expired runs immediately.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	return p.store.Prune(ctx, p.store.now().Add(-p.retention))
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := p.PruneNow(ctx)
	if err != nil {
		p.logger.Warn("History prune failed", zap.Error(err))
		return
	}
	p.logger.Info("History pruned", zap.Int64("deleted", n))
}
