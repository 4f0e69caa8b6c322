package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/route-beacon/rib-gateway/internal/metrics"
	"go.uber.org/zap"
)

// Purger removes archived snapshots past the retention window. Routes go
// with their snapshot via ON DELETE CASCADE.
type Purger struct {
	pool          *pgxpool.Pool
	retentionDays int
	logger        *zap.Logger
}

func NewPurger(pool *pgxpool.Pool, retentionDays int, logger *zap.Logger) *Purger {
	return &Purger{
		pool:          pool,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

func (p *Purger) Run(ctx context.Context) error {
	tag, err := p.pool.Exec(ctx,
		"DELETE FROM rib_snapshots WHERE fetched_at < now() - make_interval(days => $1)",
		p.retentionDays,
	)
	if err != nil {
		return fmt.Errorf("purging snapshots older than %d days: %w", p.retentionDays, err)
	}

	purged := tag.RowsAffected()
	metrics.SnapshotsPurgedTotal.Add(float64(purged))
	p.logger.Info("retention purge complete",
		zap.Int64("snapshots_purged", purged),
		zap.Int("retention_days", p.retentionDays),
	)
	return nil
}
