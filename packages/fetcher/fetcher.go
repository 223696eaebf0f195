// Package fetcher issues GET requests against a source that actively blocks
// automated clients. On block detection it rotates the whole session
// identity (proxy exit, fingerprint, cookies) as one atomic operation and
// retries under a budget sized for fresh identities rather than repeats.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"harvester/packages/metrics"
)

// ErrBlocked is returned once the block-retry budget is exhausted.
var ErrBlocked = errors.New("source kept blocking after session rotations")

// blockStatuses are the source's block responses, including the codes its
// edge proxy emits under load.
var blockStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusProxyAuthRequired:  true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
	520:                           true,
	522:                           true,
}

type Config struct {
	FetchTimeout   time.Duration
	NetworkRetries int
	BlockRetries   int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	BlockDelayStep time.Duration
	ReadDelayMin   time.Duration
	ReadDelayMax   time.Duration
	ProxyURLs      []string
	// ProxiedHosts lists hosts known to block direct connections; everything
	// else connects directly to conserve proxy bandwidth.
	ProxiedHosts   []string
	AcceptLanguage string
	Fingerprints   []Fingerprint
}

type Result struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}

type Fetcher struct {
	cfg Config

	mu      sync.Mutex
	proxies []*proxyIdentity
	session session
}

func New(cfg Config) *Fetcher {
	if len(cfg.Fingerprints) == 0 {
		cfg.Fingerprints = defaultFingerprints
	}

	f := &Fetcher{cfg: cfg}
	for _, raw := range cfg.ProxyURLs {
		f.proxies = append(f.proxies, &proxyIdentity{rawURL: raw})
	}
	f.session = f.newSession(nil)
	return f
}

// Fetch blocks until a non-block response arrives or the retry budget runs
// out. Non-2xx non-block statuses are returned to the caller undecorated;
// deciding what a 404 means is the pipeline's job.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	netFailures := 0
	blockFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		client, fp := f.snapshot(target.Host)

		start := time.Now()
		res, err := f.doRequest(ctx, client, fp, target)
		metrics.FetchDuration.Observe(time.Since(start).Seconds())

		switch {
		case err != nil:
			metrics.FetchRequests.WithLabelValues("network_error").Inc()
			netFailures++
			if netFailures > f.cfg.NetworkRetries {
				return Result{}, fmt.Errorf("fetch %s: %w", rawURL, err)
			}
			f.sleep(ctx, backoff(f.cfg.BackoffBase, f.cfg.BackoffCap, netFailures))

		case blockStatuses[res.StatusCode]:
			metrics.FetchRequests.WithLabelValues("blocked").Inc()
			slog.Warn("Block response from source", "url", rawURL, "status", res.StatusCode, "attempt", blockFailures+1)

			// Every block-classified response consumes budget and delays,
			// whether or not the fallback probe confirms it; otherwise a
			// fingerprint-only rule spins this loop at full speed.
			blockFailures++
			if blockFailures > f.cfg.BlockRetries {
				return Result{}, fmt.Errorf("fetch %s: %w", rawURL, ErrBlocked)
			}
			if f.confirmBlock(ctx, target) {
				f.resetSession(ctx, target)
			} else {
				// The fallback got through, so the exit IP and cookies are
				// still good; only the primary fingerprint tripped a rule.
				f.rotateFingerprint()
			}
			// Each retry runs under a changed identity, so the delay scales
			// with attempts instead of doubling.
			f.sleep(ctx, time.Duration(blockFailures)*f.cfg.BlockDelayStep)

		default:
			metrics.FetchRequests.WithLabelValues("ok").Inc()
			f.readingDelay(ctx)
			return res, nil
		}
	}
}

// doRequest issues one GET with the given client and fingerprint headers.
func (f *Fetcher) doRequest(ctx context.Context, client *http.Client, fp Fingerprint, target *url.URL) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Result{}, err
	}

	req.Header.Set("User-Agent", fp.UserAgent)
	req.Header.Set("Accept", fp.Accept)
	if f.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	}
	if fp.SecChUA != "" {
		req.Header.Set("Sec-Ch-Ua", fp.SecChUA)
		req.Header.Set("Sec-Ch-Ua-Platform", fp.Platform)
		req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	}
	// Deep links arrive "from" the host's root page to mimic organic
	// navigation; the root itself gets no Referer.
	if target.Path != "" && target.Path != "/" {
		req.Header.Set("Referer", target.Scheme+"://"+target.Host+"/")
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{StatusCode: resp.StatusCode, Body: body, FinalURL: resp.Request.URL.String()}, nil
}

// confirmBlock re-checks an apparent block with the distinct fallback
// client. A clean response there means the primary client tripped a
// fingerprint rule, not an IP ban, so only the fingerprint rotates.
func (f *Fetcher) confirmBlock(ctx context.Context, target *url.URL) bool {
	f.mu.Lock()
	fallback := f.session.fallback
	f.mu.Unlock()

	res, err := f.doRequest(ctx, fallback, fallbackFingerprint, target)
	if err != nil {
		return true
	}
	return blockStatuses[res.StatusCode]
}

// snapshot returns the client/fingerprint pair for this request. Hosts not
// on the proxied list get the session's direct client, so cookies and
// connections persist on that path too.
func (f *Fetcher) snapshot(host string) (*http.Client, Fingerprint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.hostNeedsProxy(host) && f.session.proxy != nil {
		return f.session.direct, f.session.fingerprint
	}
	return f.session.client, f.session.fingerprint
}

// rotateFingerprint swaps only the browser profile, keeping the proxy exit,
// cookies, and session suffix intact.
func (f *Fetcher) rotateFingerprint() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.cfg.Fingerprints) < 2 {
		return
	}
	old := f.session.fingerprint
	for f.session.fingerprint == old {
		f.session.fingerprint = f.cfg.Fingerprints[rand.Intn(len(f.cfg.Fingerprints))]
	}
}

func (f *Fetcher) hostNeedsProxy(host string) bool {
	for _, h := range f.cfg.ProxiedHosts {
		if h == host {
			return true
		}
	}
	return false
}

// resetSession discards the whole identity: the current proxy is marked
// failed, the least-recently-failed one takes over, the fingerprint and
// session suffix rotate, cookies are dropped, and the warm-up fetch runs.
func (f *Fetcher) resetSession(ctx context.Context, target *url.URL) {
	f.mu.Lock()

	if f.session.proxy != nil {
		f.session.proxy.lastFailed = time.Now()
	}
	old := f.session
	f.session = f.newSession(&old)
	warmClient := f.session.client

	metrics.SessionResets.Inc()
	slog.Info("Session reset",
		"proxy", proxyLabel(f.session.proxy),
		"user_agent", f.session.fingerprint.UserAgent,
		"session", f.session.suffix,
	)
	f.mu.Unlock()

	f.warmUp(ctx, warmClient, target)
}

// newSession builds the next identity. Callers hold the mutex.
func (f *Fetcher) newSession(old *session) session {
	next := session{
		proxy:  f.pickProxy(),
		suffix: newSuffix(),
	}

	next.fingerprint = f.cfg.Fingerprints[rand.Intn(len(f.cfg.Fingerprints))]
	if old != nil && len(f.cfg.Fingerprints) > 1 {
		for next.fingerprint == old.fingerprint {
			next.fingerprint = f.cfg.Fingerprints[rand.Intn(len(f.cfg.Fingerprints))]
		}
	}

	next.client = buildClient(next.proxy, next.suffix, f.cfg.FetchTimeout)
	next.fallback = buildClient(next.proxy, next.suffix+"-alt", f.cfg.FetchTimeout)
	next.direct = buildClient(nil, next.suffix, f.cfg.FetchTimeout)
	return next
}

// pickProxy returns the least-recently-failed proxy, or nil when no pool is
// configured (direct connection).
func (f *Fetcher) pickProxy() *proxyIdentity {
	var best *proxyIdentity
	for _, p := range f.proxies {
		if best == nil || p.lastFailed.Before(best.lastFailed) {
			best = p
		}
	}
	return best
}

// warmUp fetches the host root to acquire baseline cookies for the new
// session. Failures here are not fatal; the next real request will tell.
func (f *Fetcher) warmUp(ctx context.Context, client *http.Client, target *url.URL) {
	root := *target
	root.Path = "/"
	root.RawQuery = ""

	f.mu.Lock()
	fp := f.session.fingerprint
	f.mu.Unlock()

	if _, err := f.doRequest(ctx, client, fp, &root); err != nil {
		slog.Debug("Warm-up fetch failed", "host", root.Host, "error", err)
	}
}

// readingDelay inserts a small randomized pause after a successful fetch so
// response timing does not form a request-rate signature.
func (f *Fetcher) readingDelay(ctx context.Context) {
	if f.cfg.ReadDelayMax <= 0 {
		return
	}
	span := f.cfg.ReadDelayMax - f.cfg.ReadDelayMin
	delay := f.cfg.ReadDelayMin
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	f.sleep(ctx, delay)
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Identity exposes the current session identity for logging and tests.
func (f *Fetcher) Identity() (proxy, userAgent, suffix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return proxyLabel(f.session.proxy), f.session.fingerprint.UserAgent, f.session.suffix
}

func proxyLabel(p *proxyIdentity) string {
	if p == nil {
		return "direct"
	}
	if u, err := url.Parse(p.rawURL); err == nil {
		return u.Host
	}
	return p.rawURL
}

// backoff doubles the base per failure, caps the result, and adds up to 25%
// jitter.
func backoff(base, cap time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= cap {
			d = cap
			break
		}
	}
	if d > cap {
		d = cap
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
