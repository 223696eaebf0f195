// Package worker
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"harvester/packages/category"
	"harvester/packages/config"
	"harvester/packages/db"
	"harvester/packages/domain"
	"harvester/packages/extractor"
	"harvester/packages/fetcher"
	"harvester/packages/media"
	"harvester/packages/metrics"
	"harvester/packages/quality"
	"harvester/packages/translate"

	"github.com/gosimple/slug"
)

type Worker struct {
	cfg        config.Config
	storage    *db.Storage
	fetcher    *fetcher.Fetcher
	extractor  *extractor.Extractor
	fallback   *extractor.Fallback
	gate       *quality.Gate
	translator *translate.Orchestrator
	media      *media.Store
	matcher    category.SemanticMatcher
	matchCache *category.MatchCache
}

type Deps struct {
	Storage    *db.Storage
	Fetcher    *fetcher.Fetcher
	Extractor  *extractor.Extractor
	Fallback   *extractor.Fallback
	Translator *translate.Orchestrator
	Media      *media.Store
	Matcher    category.SemanticMatcher
	MatchCache *category.MatchCache
}

func New(cfg config.Config, deps Deps) *Worker {
	return &Worker{
		cfg:        cfg,
		storage:    deps.Storage,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		fallback:   deps.Fallback,
		gate:       quality.NewGate(cfg.MinContentLength, cfg.FallbackImageURL),
		translator: deps.Translator,
		media:      deps.Media,
		matcher:    deps.Matcher,
		matchCache: deps.MatchCache,
	}
}

// ProcessBatch claims one batch and works through it sequentially: a single
// concurrency permit per item keeps the ledger's processing state race-free
// within this process. Fan-out happens inside an item (images, languages),
// never across items.
func (w *Worker) ProcessBatch(ctx context.Context) {
	items, err := w.storage.ClaimBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		slog.Error("Failed to claim batch", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	slog.Info("Claimed batch", "count", len(items))

	categories, err := w.storage.LoadCategories(ctx)
	if err != nil {
		slog.Error("Failed to load categories, releasing batch", "error", err)
		for _, item := range items {
			_ = w.storage.Fail(ctx, item.SourceURL, "category load failed: "+err.Error())
		}
		return
	}
	resolver := category.NewResolver(categories, w.matcher, w.matchCache)

	// Avoid monoculture batches hammering one section of the source.
	items = diversityShuffle(items)

	for i, item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.processItem(ctx, item, resolver); err != nil {
			slog.Error("Item failed", "url", item.SourceURL, "error", err)
			metrics.ItemsProcessed.WithLabelValues("failed").Inc()
			if failErr := w.storage.Fail(ctx, item.SourceURL, err.Error()); failErr != nil {
				slog.Error("Failed to record item failure", "url", item.SourceURL, "error", failErr)
			}
		}

		// Policy delay, not correctness: the source tolerates slow clients.
		if i < len(items)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ItemDelay):
			}
		}
	}
	slog.Info("Finished processing batch", "count", len(items))
}

// processItem runs the strict per-item sequence: fetch, extract, gate,
// resolve, translate, persist, complete. Any error is converted by the
// caller into a ledger fail with the reason preserved.
func (w *Worker) processItem(ctx context.Context, item domain.SourceItem, resolver *category.Resolver) error {
	res, err := w.fetcher.Fetch(ctx, item.SourceURL)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: source returned status %d", res.StatusCode)
	}

	html := string(res.Body)
	draft, err := w.extractor.Parse(html, item.SourceURL)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	hash := ContentHash(draft.Content)
	if item.ContentHash != "" && item.ContentHash == hash {
		slog.Info("Content unchanged, skipping enrichment", "url", item.SourceURL)
		metrics.ItemsProcessed.WithLabelValues("unchanged").Inc()
		return w.storage.Complete(ctx, item.SourceURL, hash)
	}

	// Structural shortfall escalates to the AI pass; it only backfills
	// fields the selectors missed.
	if w.needsFallback(draft) && w.fallback.Enabled() {
		if err := w.fallback.Backfill(ctx, &draft, extractor.VisibleText(html)); err != nil {
			slog.Warn("AI extraction fallback failed", "url", item.SourceURL, "error", err)
		}
		hash = ContentHash(draft.Content)
	}

	if draft.Language != "" && w.cfg.SourceLanguage != "" && draft.Language != w.cfg.SourceLanguage {
		return fmt.Errorf("language check: detected %s, expected %s", draft.Language, w.cfg.SourceLanguage)
	}

	hasProductImage := false
	if draft.ProductURL != "" {
		hasProductImage, err = w.storage.ProductHasImage(ctx, draft.ProductURL)
		if err != nil {
			return fmt.Errorf("product image lookup: %w", err)
		}
	}
	if ok, reason := w.gate.Accept(draft, hasProductImage); !ok {
		return fmt.Errorf("quality gate: %s", reason)
	}

	match, err := resolver.Resolve(ctx, draft)
	if err != nil {
		if errors.Is(err, category.ErrNoMatch) {
			return err
		}
		return fmt.Errorf("resolve category: %w", err)
	}

	translations := w.translator.Translate(ctx, draft, w.cfg.TargetLanguages)

	imageURLs := draft.ImageURLs
	if w.media.Enabled() && len(draft.ImageURLs) > 0 {
		if mirrored := w.media.MirrorImages(ctx, item.ID, draft.ImageURLs); len(mirrored) > 0 {
			imageURLs = mirrored
		}
	}
	if len(imageURLs) == 0 && !hasProductImage && w.cfg.FallbackImageURL != "" {
		imageURLs = []string{w.cfg.FallbackImageURL}
	}

	stored, err := w.storage.PersistReview(ctx, draft, match, translations, imageURLs)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	for lang := range translations {
		if err := w.storage.UpsertProductTranslation(ctx, stored.ProductID, lang,
			draft.ProductName, slug.MakeLang(draft.ProductName, lang)); err != nil {
			return fmt.Errorf("persist product translation: %w", err)
		}
	}

	metrics.ItemsProcessed.WithLabelValues("processed").Inc()
	slog.Info("Item processed", "url", item.SourceURL, "review_id", stored.ReviewID, "languages", len(translations))
	return w.storage.Complete(ctx, item.SourceURL, hash)
}

func (w *Worker) needsFallback(draft domain.ReviewDraft) bool {
	return len([]rune(draft.Content)) < w.cfg.MinContentLength ||
		(draft.CategoryName == "" && draft.CategoryURL == "")
}

// ContentHash fingerprints the cleaned content so unchanged re-crawls can
// short-circuit enrichment.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
