// Package media moves review images into object storage. Keys are content
// addressed (hash of the processed bytes) under a per-entity prefix, so
// re-uploads of unchanged images are no-ops at the URL level.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"harvester/packages/fetcher"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// Processor is the external downscale/watermark collaborator. It receives
// raw image bytes and returns processed bytes plus a content type.
type Processor interface {
	Process(ctx context.Context, raw []byte) ([]byte, string, error)
}

// PassthroughProcessor uploads images untouched.
type PassthroughProcessor struct{}

func (PassthroughProcessor) Process(_ context.Context, raw []byte) ([]byte, string, error) {
	contentType := http.DetectContentType(raw)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("not an image: %s", contentType)
	}
	return raw, contentType, nil
}

type Config struct {
	Bucket      string
	Region      string
	PublicBase  string
	Concurrency int
}

type Store struct {
	client    *s3.Client
	fetcher   *fetcher.Fetcher
	processor Processor
	cfg       Config
}

func NewStore(ctx context.Context, f *fetcher.Fetcher, processor Processor, cfg Config) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if processor == nil {
		processor = PassthroughProcessor{}
	}

	return &Store{
		client:    s3.NewFromConfig(awsCfg),
		fetcher:   f,
		processor: processor,
		cfg:       cfg,
	}, nil
}

// Enabled reports whether uploads are configured; without a bucket the
// pipeline keeps the source-hosted image URLs.
func (s *Store) Enabled() bool {
	return s != nil && s.cfg.Bucket != ""
}

// MirrorImages fetches, processes, and uploads the given image URLs with
// bounded parallelism, preserving input order in the result. Individual
// image failures are logged and skipped; one broken image does not fail the
// item.
func (s *Store) MirrorImages(ctx context.Context, entityID int64, imageURLs []string) []string {
	results := make([]string, len(imageURLs))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, imgURL := range imageURLs {
		idx, src := i, imgURL
		g.Go(func() error {
			publicURL, err := s.mirrorOne(gCtx, entityID, src)
			if err != nil {
				slog.Warn("Image mirror failed", "url", src, "error", err)
				return nil
			}
			mu.Lock()
			results[idx] = publicURL
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(results))
	for _, u := range results {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (s *Store) mirrorOne(ctx context.Context, entityID int64, imgURL string) (string, error) {
	res, err := s.fetcher.Fetch(ctx, imgURL)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: status %d", res.StatusCode)
	}

	processed, contentType, err := s.processor.Process(ctx, res.Body)
	if err != nil {
		return "", fmt.Errorf("process image: %w", err)
	}

	sum := sha256.Sum256(processed)
	key := fmt.Sprintf("products/%d/%s%s", entityID, hex.EncodeToString(sum[:])[:16], extensionFor(contentType))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(processed),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	return strings.TrimRight(s.cfg.PublicBase, "/") + "/" + key, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
