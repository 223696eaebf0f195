package fetcher

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Fingerprint is one browser-like client signature. The tables below are
// immutable configuration data; a Fetcher owns which entry is active.
type Fingerprint struct {
	UserAgent string
	Accept    string
	SecChUA   string
	Platform  string
}

var defaultFingerprints = []Fingerprint{
	{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		SecChUA:   `"Google Chrome";v="126", "Chromium";v="126", "Not.A/Brand";v="24"`,
		Platform:  `"Windows"`,
	},
	{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		Accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		SecChUA:   `"Chromium";v="125", "Google Chrome";v="125", "Not.A/Brand";v="24"`,
		Platform:  `"macOS"`,
	},
	{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
		Accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	},
	{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		Accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	},
}

// fallbackFingerprint backs the secondary client used to double-check a
// block before the session is torn down.
var fallbackFingerprint = Fingerprint{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	Accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

type proxyIdentity struct {
	rawURL     string
	lastFailed time.Time
}

// session is the fetcher's rotating identity: proxy exit, fingerprint,
// upstream session suffix, and cookie state. All mutation happens under the
// owning Fetcher's mutex.
type session struct {
	proxy       *proxyIdentity
	fingerprint Fingerprint
	suffix      string
	client      *http.Client
	fallback    *http.Client
	// direct serves hosts outside the proxied list; it shares the session's
	// lifetime so cookies survive between requests on that path.
	direct *http.Client
}

// newSuffix tags the proxy username so a rotating upstream allocates a fresh
// exit IP for this session.
func newSuffix() string {
	return uuid.NewString()[:8]
}

func buildClient(proxy *proxyIdentity, suffix string, timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	transport := &http.Transport{}

	if proxy != nil {
		if u, err := url.Parse(proxy.rawURL); err == nil {
			if u.User != nil {
				password, _ := u.User.Password()
				u.User = url.UserPassword(u.User.Username()+"-session-"+suffix, password)
			}
			transport.Proxy = http.ProxyURL(u)
		}
	}

	return &http.Client{
		Jar:       jar,
		Timeout:   timeout,
		Transport: transport,
	}
}
