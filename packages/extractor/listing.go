package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// listingLinkSelectors match review links on category listing pages.
var listingLinkSelectors = []string{
	"a.review-item__link",
	".review-list a.item-title",
	"article.review-preview h2 a",
	".reviews-list .review a[href]",
}

// ListingLinks pulls absolute review URLs out of a listing page, in page
// order, deduplicated. Returns nil when the page carries no review links,
// which callers treat as the end of pagination.
func ListingLinks(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	for _, sel := range listingLinkSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" || strings.HasPrefix(href, "#") {
				return
			}
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			abs := base.ResolveReference(ref)
			abs.Fragment = ""
			if abs.Host != base.Host {
				return
			}
			if s := abs.String(); !seen[s] {
				seen[s] = true
				links = append(links, s)
			}
		})
		if len(links) > 0 {
			break
		}
	}
	return links
}

// SlugFromURL is the last non-empty path segment, used as the ledger's
// stable short handle for a source page.
func SlugFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return u.Host
}
