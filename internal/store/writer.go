// Package store archives decoded RIB snapshots in PostgreSQL and applies
// retention to the archive.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"github.com/route-beacon/rib-gateway/internal/metrics"
	"github.com/route-beacon/rib-gateway/internal/snapshot"
	"go.uber.org/zap"
)

var zstdEncoder, _ = zstd.NewWriter(nil)

type Writer struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	storeRaw    bool
	compressRaw bool
}

func NewWriter(pool *pgxpool.Pool, logger *zap.Logger, storeRaw, compressRaw bool) *Writer {
	return &Writer{
		pool:        pool,
		logger:      logger,
		storeRaw:    storeRaw,
		compressRaw: compressRaw,
	}
}

// Name implements snapshot.Sink.
func (w *Writer) Name() string { return "postgres" }

// Publish implements snapshot.Sink: one rib_snapshots row plus one
// rib_routes row per route, in a single transaction. Row order preserves
// the snapshot's route order via the position column.
func (w *Writer) Publish(ctx context.Context, res *snapshot.Result) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var rawPayload []byte
	rawCompressed := false
	if w.storeRaw {
		rawPayload, err = json.Marshal(res.Routes)
		if err != nil {
			return fmt.Errorf("marshaling routes payload: %w", err)
		}
		if w.compressRaw {
			rawPayload = zstdEncoder.EncodeAll(rawPayload, nil)
			rawCompressed = true
		}
	}

	var snapshotID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO rib_snapshots (instance_id, fetched_at, route_count, raw_payload, raw_compressed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		res.InstanceID, res.FetchedAt, len(res.Routes), rawPayload, rawCompressed,
	).Scan(&snapshotID)
	if err != nil {
		return fmt.Errorf("inserting snapshot row: %w", err)
	}

	for i, r := range res.Routes {
		_, err := tx.Exec(ctx, `
			INSERT INTO rib_routes (snapshot_id, position, prefix, as_path, next_hop, community, med)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			snapshotID, i, r.Prefix, asPathColumn(r.ASPath), nullable(r.NextHop), r.Community, medColumn(r.MED),
		)
		if err != nil {
			return fmt.Errorf("inserting route %s: %w", r.Prefix, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.DBRowsWrittenTotal.WithLabelValues("rib_snapshots").Inc()
	metrics.DBRowsWrittenTotal.WithLabelValues("rib_routes").Add(float64(len(res.Routes)))

	w.logger.Debug("snapshot archived",
		zap.Int64("snapshot_id", snapshotID),
		zap.Int("routes", len(res.Routes)),
	)
	return nil
}

// asPathColumn widens the ASNs for a BIGINT[] column; nil stays NULL so
// an absent AS_PATH is not confused with an empty one.
func asPathColumn(asns []uint32) []int64 {
	if asns == nil {
		return nil
	}
	out := make([]int64, len(asns))
	for i, asn := range asns {
		out[i] = int64(asn)
	}
	return out
}

func medColumn(med *uint32) *int64 {
	if med == nil {
		return nil
	}
	v := int64(*med)
	return &v
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
