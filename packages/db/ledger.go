package db

import (
	"context"
	"fmt"
	"time"

	"harvester/packages/domain"
	"harvester/packages/metrics"

	"github.com/jackc/pgx/v5"
)

// maxErrorLength bounds the stored failure reason so oversized upstream
// bodies never land in the ledger.
const maxErrorLength = 500

// UpsertSources registers discovered URLs. Re-discovery refreshes
// last_seen_at but never touches status or the retry counter.
func (s *Storage) UpsertSources(ctx context.Context, items []domain.SourceItem) error {
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("upsert_sources").Observe(time.Since(start).Seconds())
	}()

	return s.WithTransaction(ctx, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, item := range items {
			b.Queue(`
				INSERT INTO source_map (source_url, source_slug, status, last_seen_at)
				VALUES ($1, $2, 'new', NOW())
				ON CONFLICT (source_url) DO UPDATE SET
					source_slug = EXCLUDED.source_slug,
					last_seen_at = NOW()`,
				item.SourceURL, item.SourceSlug)
		}
		br := tx.SendBatch(ctx, b)
		defer br.Close()
		for range items {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to upsert source: %w", err)
			}
		}
		return nil
	})
}

// ClaimBatch selects the oldest-discovered claimable rows and flips them to
// processing inside one transaction. Eligible rows are `new` ones plus
// `failed` ones still under the retry budget. This is not a distributed
// lock: a single worker process is assumed, SKIP LOCKED only guards
// against overlap with the reaper.
func (s *Storage) ClaimBatch(ctx context.Context, limit int) ([]domain.SourceItem, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("claim_batch").Observe(time.Since(start).Seconds())
	}()

	var items []domain.SourceItem

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, source_url, source_slug, status, retries, COALESCE(content_hash, '')
			FROM source_map
			WHERE status = 'new' OR (status = 'failed' AND retries < $1)
			ORDER BY last_seen_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED`,
			s.cfg.MaxRetries, limit)
		if err != nil {
			return fmt.Errorf("failed to select claimable rows: %w", err)
		}

		items = items[:0]
		var item domain.SourceItem
		if _, err := pgx.ForEachRow(rows,
			[]any{&item.ID, &item.SourceURL, &item.SourceSlug, &item.Status, &item.Retries, &item.ContentHash},
			func() error {
				items = append(items, item)
				return nil
			}); err != nil {
			return fmt.Errorf("failed to iterate claimable rows: %w", err)
		}

		if len(items) == 0 {
			return nil
		}

		ids := make([]int64, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}

		_, err = tx.Exec(ctx, `
			UPDATE source_map
			SET status = 'processing', last_seen_at = NOW()
			WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("failed to mark rows processing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].Status = domain.StatusProcessing
	}
	return items, nil
}

// Complete marks an item processed and records its content hash.
func (s *Storage) Complete(ctx context.Context, sourceURL, contentHash string) error {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("complete").Observe(time.Since(start).Seconds())
	}()

	_, err := s.DB.Exec(ctx, `
		UPDATE source_map
		SET status = 'processed', content_hash = $2, last_error = NULL, last_seen_at = NOW()
		WHERE source_url = $1`,
		sourceURL, contentHash)
	if err != nil {
		return fmt.Errorf("failed to complete source item: %w", err)
	}
	return nil
}

// Fail records a failure reason and increments the retry counter. Retries
// only ever grow; re-discovery and completion never reset them.
func (s *Storage) Fail(ctx context.Context, sourceURL, reason string) error {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
	}()

	_, err := s.DB.Exec(ctx, `
		UPDATE source_map
		SET status = 'failed', retries = retries + 1, last_error = $2, last_seen_at = NOW()
		WHERE source_url = $1`,
		sourceURL, TruncateReason(reason))
	if err != nil {
		return fmt.Errorf("failed to fail source item: %w", err)
	}
	return nil
}

// ResetStalled returns processing rows stuck past the job timeout to `new`
// without consuming a retry; the worker died mid-item, the item did not fail.
func (s *Storage) ResetStalled(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("reset_stalled").Observe(time.Since(start).Seconds())
	}()

	tag, err := s.DB.Exec(ctx, `
		UPDATE source_map
		SET status = 'new', last_seen_at = NOW()
		WHERE status = 'processing' AND last_seen_at < NOW() - $1::interval`,
		s.cfg.JobTimeout.String())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stalled items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RefreshCounts updates the pending/total gauges for the reaper.
func (s *Storage) RefreshCounts(ctx context.Context) error {
	var pending, total int64
	err := s.DB.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'new' OR (status = 'failed' AND retries < $1)),
			COUNT(*)
		FROM source_map`, s.cfg.MaxRetries).Scan(&pending, &total)
	if err != nil {
		return fmt.Errorf("failed to count source items: %w", err)
	}
	metrics.PendingItems.Set(float64(pending))
	metrics.TotalItems.Set(float64(total))
	return nil
}

// TruncateReason caps a failure reason at the ledger column budget.
func TruncateReason(reason string) string {
	runes := []rune(reason)
	if len(runes) <= maxErrorLength {
		return reason
	}
	return string(runes[:maxErrorLength])
}
