package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"harvester/packages/domain"
	"harvester/packages/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// ErrSlugExhausted reports that every suffixed slug candidate collided.
var ErrSlugExhausted = errors.New("slug conflict retries exhausted")

// LoadCategories returns the full known category set for the resolver.
func (s *Storage) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("load_categories").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.DB.Query(ctx, `
		SELECT id, COALESCE(source_url, ''), name, parent_id
		FROM categories
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	var cats []domain.Category
	var c domain.Category
	if _, err := pgx.ForEachRow(rows, []any{&c.ID, &c.SourceURL, &c.Name, &c.ParentID}, func() error {
		cats = append(cats, c)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate category rows: %w", err)
	}
	return cats, nil
}

// ProductHasImage reports whether a product identified by its source URL
// already carries at least one image, so the quality gate can waive the
// image floor for it.
func (s *Storage) ProductHasImage(ctx context.Context, productURL string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("product_has_image").Observe(time.Since(start).Seconds())
	}()

	var exists bool
	err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM products p
			JOIN product_images pi ON pi.product_id = p.id
			WHERE p.source_url = $1
		)`, productURL).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product images: %w", err)
	}
	return exists, nil
}

// PersistReview writes the product, its category links and images, the
// review row, and every per-language translation in one transaction.
// imageURLs are the already-uploaded public URLs.
func (s *Storage) PersistReview(ctx context.Context, draft domain.ReviewDraft, match domain.CategoryMatch,
	translations map[string]domain.TranslationPayload, imageURLs []string) (domain.StoredReview, error) {

	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("persist_review").Observe(time.Since(start).Seconds())
	}()

	var stored domain.StoredReview

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (name, source_url)
			VALUES ($1, $2)
			ON CONFLICT (source_url) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
			RETURNING id`,
			draft.ProductName, draft.ProductURL).Scan(&stored.ProductID)
		if err != nil {
			return fmt.Errorf("failed to upsert product: %w", err)
		}

		categoryIDs := []int64{match.CategoryID}
		if match.SubcategoryID != nil {
			categoryIDs = append(categoryIDs, *match.SubcategoryID)
		}
		for _, catID := range categoryIDs {
			_, err = tx.Exec(ctx, `
				INSERT INTO product_categories (product_id, category_id)
				VALUES ($1, $2)
				ON CONFLICT (product_id, category_id) DO NOTHING`,
				stored.ProductID, catID)
			if err != nil {
				return fmt.Errorf("failed to link product category: %w", err)
			}
		}

		for i, imgURL := range imageURLs {
			_, err = tx.Exec(ctx, `
				INSERT INTO product_images (product_id, url, position)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id, url) DO UPDATE SET position = EXCLUDED.position`,
				stored.ProductID, imgURL, i)
			if err != nil {
				return fmt.Errorf("failed to upsert product image: %w", err)
			}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO reviews (product_id, source_url, rating, likes, dislikes, published_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_url) DO UPDATE SET
				product_id = EXCLUDED.product_id,
				rating = EXCLUDED.rating,
				likes = EXCLUDED.likes,
				dislikes = EXCLUDED.dislikes,
				published_at = EXCLUDED.published_at,
				updated_at = NOW()
			RETURNING id`,
			stored.ProductID, draft.SourceURL, draft.Rating, draft.Likes, draft.Dislikes, draft.Published).
			Scan(&stored.ReviewID)
		if err != nil {
			return fmt.Errorf("failed to upsert review: %w", err)
		}

		for lang, payload := range translations {
			if err := s.upsertReviewTranslation(ctx, tx, stored.ReviewID, lang, payload); err != nil {
				return fmt.Errorf("failed to upsert %s translation: %w", lang, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.StoredReview{}, err
	}
	return stored, nil
}

// upsertReviewTranslation writes one (review, language) row. The slug column
// carries a global per-language uniqueness constraint, so collisions with
// other entities are expected; each retry appends a deterministic suffix.
func (s *Storage) upsertReviewTranslation(ctx context.Context, tx pgx.Tx, reviewID int64, lang string,
	payload domain.TranslationPayload) error {

	slugCandidate := payload.Slug
	for attempt := 0; attempt <= s.cfg.SlugAttempts; attempt++ {
		if attempt > 0 {
			slugCandidate = SuffixSlug(payload.Slug, reviewID, lang, attempt)
		}

		// A unique violation aborts the enclosing transaction, so each
		// attempt runs under its own savepoint.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return err
		}
		_, err = sp.Exec(ctx, `
			INSERT INTO review_translations (
				review_id, language, title, content, meta_title, meta_description,
				slug, summary, faq, specs, pros, cons, is_fallback
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (review_id, language) DO UPDATE SET
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				meta_title = EXCLUDED.meta_title,
				meta_description = EXCLUDED.meta_description,
				slug = EXCLUDED.slug,
				summary = EXCLUDED.summary,
				faq = EXCLUDED.faq,
				specs = EXCLUDED.specs,
				pros = EXCLUDED.pros,
				cons = EXCLUDED.cons,
				is_fallback = EXCLUDED.is_fallback,
				updated_at = NOW()`,
			reviewID, lang, payload.Title, payload.Content, payload.MetaTitle, payload.MetaDesc,
			slugCandidate, payload.Summary, payload.FAQ, payload.Specs, payload.Pros, payload.Cons,
			payload.Fallback)
		if err == nil {
			return sp.Commit(ctx)
		}
		_ = sp.Rollback(ctx)
		if !isSlugConflict(err) {
			return err
		}
	}
	return ErrSlugExhausted
}

// UpsertProductTranslation stores the per-language product name and slug,
// with the same bounded suffix loop as review translations.
func (s *Storage) UpsertProductTranslation(ctx context.Context, productID int64, lang, name, baseSlug string) error {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("upsert_product_translation").Observe(time.Since(start).Seconds())
	}()

	slugCandidate := baseSlug
	for attempt := 0; attempt <= s.cfg.SlugAttempts; attempt++ {
		if attempt > 0 {
			slugCandidate = SuffixSlug(baseSlug, productID, lang, attempt)
		}

		_, err := s.DB.Exec(ctx, `
			INSERT INTO product_translations (product_id, language, name, slug)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, language) DO UPDATE SET
				name = EXCLUDED.name, slug = EXCLUDED.slug, updated_at = NOW()`,
			productID, lang, name, slugCandidate)
		if err == nil {
			return nil
		}
		if !isSlugConflict(err) {
			return fmt.Errorf("failed to upsert product translation: %w", err)
		}
	}
	return ErrSlugExhausted
}

// slugConstraints names the global (language, slug) unique constraints.
// Only these may trigger a suffix retry; any other unique violation is a
// real error and must surface as one.
var slugConstraints = map[string]bool{
	"review_translations_language_slug_key":  true,
	"product_translations_language_slug_key": true,
}

// isSlugConflict distinguishes the global (language, slug) unique constraint
// from the (entity, language) natural key, which ON CONFLICT already absorbs.
func isSlugConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && slugConstraints[pgErr.ConstraintName]
}
