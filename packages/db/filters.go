package db

import (
	"context"
	"fmt"
	"time"

	"harvester/packages/metrics"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// FilterOp is the closed set of supported review-listing operators. Adding a
// member without extending predicate() fails every call site at once instead
// of silently matching nothing.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpNotEq
	OpGt
	OpGte
	OpLt
	OpLte
	OpLike
	OpIn
)

type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

// ReviewRow is a flattened listing row for the query surface.
type ReviewRow struct {
	ID          int64
	ProductID   int64
	SourceURL   string
	Rating      *float64
	Likes       int
	Dislikes    int
	PublishedAt *time.Time
}

func (f Filter) predicate() (sq.Sqlizer, error) {
	switch f.Op {
	case OpEq:
		return sq.Eq{f.Column: f.Value}, nil
	case OpNotEq:
		return sq.NotEq{f.Column: f.Value}, nil
	case OpGt:
		return sq.Gt{f.Column: f.Value}, nil
	case OpGte:
		return sq.GtOrEq{f.Column: f.Value}, nil
	case OpLt:
		return sq.Lt{f.Column: f.Value}, nil
	case OpLte:
		return sq.LtOrEq{f.Column: f.Value}, nil
	case OpLike:
		return sq.ILike{f.Column: f.Value}, nil
	case OpIn:
		return sq.Eq{f.Column: f.Value}, nil
	default:
		return nil, fmt.Errorf("unknown filter operator %d", f.Op)
	}
}

// BuildReviewQuery translates filters into SQL. Split out from ListReviews
// so the translation is testable without a database.
func BuildReviewQuery(filters []Filter, limit uint64) (string, []any, error) {
	builder := sq.Select("id", "product_id", "source_url", "rating", "likes", "dislikes", "published_at").
		From("reviews").
		OrderBy("published_at DESC NULLS LAST").
		Limit(limit).
		PlaceholderFormat(sq.Dollar)

	for _, f := range filters {
		pred, err := f.predicate()
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(pred)
	}

	return builder.ToSql()
}

// ListReviews returns persisted reviews matching the given filters.
func (s *Storage) ListReviews(ctx context.Context, filters []Filter, limit uint64) ([]ReviewRow, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("list_reviews").Observe(time.Since(start).Seconds())
	}()

	sql, args, err := BuildReviewQuery(filters, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build review query: %w", err)
	}

	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	var out []ReviewRow
	var r ReviewRow
	if _, err := pgx.ForEachRow(rows,
		[]any{&r.ID, &r.ProductID, &r.SourceURL, &r.Rating, &r.Likes, &r.Dislikes, &r.PublishedAt},
		func() error {
			out = append(out, r)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("failed to iterate review rows: %w", err)
	}
	return out, nil
}
