// Discover walks the source's category listings page by page and seeds the
// ledger with every review URL it finds. Safe to re-run: known URLs only get
// their last_seen_at refreshed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"harvester/packages/config"
	"harvester/packages/db"
	"harvester/packages/domain"
	"harvester/packages/extractor"
	"harvester/packages/fetcher"

	"github.com/joho/godotenv"
)

func main() {
	maxPages := flag.Int("max-pages", 200, "pagination safety limit per section")
	sections := flag.String("sections", "", "comma-separated section paths to walk (default: the base listing)")
	flag.Parse()

	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := db.New(ctx, cfg.DatabaseURL, db.Config{
		MaxRetries:   cfg.MaxRetries,
		SlugAttempts: cfg.SlugAttempts,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	pageFetcher := fetcher.New(fetcher.Config{
		FetchTimeout:   cfg.FetchTimeout,
		NetworkRetries: cfg.NetworkRetries,
		BlockRetries:   cfg.BlockRetries,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
		BlockDelayStep: cfg.BlockDelayStep,
		ReadDelayMin:   cfg.ReadDelayMin,
		ReadDelayMax:   cfg.ReadDelayMax,
		ProxyURLs:      cfg.ProxyURLs,
		ProxiedHosts:   cfg.ProxiedHosts,
		AcceptLanguage: cfg.FingerprintLocale,
	})

	roots := []string{strings.TrimRight(cfg.SourceBase, "/")}
	if *sections != "" {
		roots = roots[:0]
		for _, s := range strings.Split(*sections, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				roots = append(roots, strings.TrimRight(cfg.SourceBase, "/")+"/"+strings.Trim(s, "/"))
			}
		}
	}

	total := 0
	for _, root := range roots {
		n, err := walkSection(ctx, storage, pageFetcher, root, *maxPages)
		if err != nil {
			slog.Error("Section walk aborted", "section", root, "error", err)
		}
		total += n
	}
	slog.Info("Discovery finished", "urls_seen", total)
}

// walkSection pages through one listing until a page yields no new links,
// comes back empty, or 404s.
func walkSection(ctx context.Context, storage *db.Storage, f *fetcher.Fetcher, root string, maxPages int) (int, error) {
	total := 0
	for page := 1; page <= maxPages; page++ {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		pageURL := root
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", root, page)
		}

		res, err := f.Fetch(ctx, pageURL)
		if err != nil {
			return total, fmt.Errorf("fetch %s: %w", pageURL, err)
		}
		if res.StatusCode == http.StatusNotFound {
			break
		}
		if res.StatusCode != http.StatusOK {
			return total, fmt.Errorf("listing %s returned status %d", pageURL, res.StatusCode)
		}

		links := extractor.ListingLinks(string(res.Body), pageURL)
		if len(links) == 0 {
			break
		}

		items := make([]domain.SourceItem, len(links))
		for i, link := range links {
			items[i] = domain.SourceItem{
				SourceURL:  link,
				SourceSlug: extractor.SlugFromURL(link),
			}
		}
		if err := storage.UpsertSources(ctx, items); err != nil {
			return total, fmt.Errorf("upsert page %d: %w", page, err)
		}

		total += len(links)
		slog.Info("Listing page ingested", "url", pageURL, "links", len(links))
	}
	return total, nil
}
