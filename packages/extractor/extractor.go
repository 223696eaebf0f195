// Package extractor turns fetched review HTML into a ReviewDraft. Selector
// lists are ordered most-specific-first with generic catch-alls last; the
// first selector yielding a non-empty value wins its field.
package extractor

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"harvester/packages/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
)

// Selectors is immutable configuration data describing where each draft
// field lives in the source markup.
type Selectors struct {
	Title       []string
	Content     []string
	Rating      []string
	Likes       []string
	Dislikes    []string
	Published   []string
	Breadcrumbs []string
	Images      []string
	Pros        []string
	Cons        []string
	ProductName []string
	ProductLink []string
}

// DefaultSelectors matches the source site's review pages.
var DefaultSelectors = Selectors{
	Title:       []string{"h1.review-title", "div.review-header h1", "h1"},
	Content:     []string{"div.review-body div.description", "div.review-body", "article .content", "article"},
	Rating:      []string{"div.review-rating meta[itemprop='ratingValue']", "span.rating-value", "[itemprop='ratingValue']"},
	Likes:       []string{"span.likes-counter", "a.like span.count", ".vote-up .count"},
	Dislikes:    []string{"span.dislikes-counter", "a.dislike span.count", ".vote-down .count"},
	Published:   []string{"time[datetime]", "span.review-date", ".date-published"},
	Breadcrumbs: []string{"div.breadcrumbs a", "nav.breadcrumb a", "ul.breadcrumb a"},
	Images:      []string{"div.review-body img", "div.review-gallery img", "article img"},
	Pros:        []string{"div.review-plus ul li", "ul.pros li"},
	Cons:        []string{"div.review-minus ul li", "ul.cons li"},
	ProductName: []string{"div.product-header a.product-name", "span[itemprop='name']", "a.product-link"},
	ProductLink: []string{"div.product-header a.product-name", "a.product-link"},
}

// imageDenylist marks default icon/avatar paths, not literal substrings:
// anything under a user-content path is accepted regardless.
var imageDenylist = []string{"avatar", "icon", "sprite", "logo", "emoji", "smile", "social", "placeholder"}

// userContentMarkers carve uploaded review media out of the denylist.
var userContentMarkers = []string{"/user-content/", "/uploads/", "/imagecache/"}

type Extractor struct {
	selectors Selectors
}

func New(selectors Selectors) *Extractor {
	return &Extractor{selectors: selectors}
}

// Parse runs the structural pass. A sparse result is not an error; the
// caller decides whether to escalate to the AI fallback.
func (e *Extractor) Parse(html, sourceURL string) (domain.ReviewDraft, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.ReviewDraft{}, fmt.Errorf("parse html: %w", err)
	}

	draft := domain.ReviewDraft{SourceURL: sourceURL}

	draft.Title = e.firstText(doc, e.selectors.Title)
	draft.Content = e.firstText(doc, e.selectors.Content)

	if raw := e.firstValue(doc, e.selectors.Rating); raw != "" {
		if rating, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64); err == nil {
			draft.Rating = &rating
		}
	}
	draft.Likes = parseCount(e.firstText(doc, e.selectors.Likes))
	draft.Dislikes = parseCount(e.firstText(doc, e.selectors.Dislikes))

	if raw := e.firstDateValue(doc, e.selectors.Published); raw != "" {
		if ts, ok := parseDate(raw); ok {
			draft.Published = &ts
		}
	}

	e.extractBreadcrumbs(doc, &draft)
	e.extractProduct(doc, sourceURL, &draft)
	draft.ImageURLs = e.extractImages(doc, sourceURL)
	draft.Pros = e.itemList(doc, e.selectors.Pros)
	draft.Cons = e.itemList(doc, e.selectors.Cons)

	if sample := languageSample(draft); sample != "" {
		info := whatlanggo.Detect(sample)
		draft.Language = info.Lang.Iso6393()
	}

	return draft, nil
}

// VisibleText returns the page's text content with scripts and styles
// stripped, for the AI extraction fallback.
func VisibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	re := strings.NewReplacer("\n", " ", "\t", " ", "\r", " ")
	return strings.Join(strings.Fields(re.Replace(doc.Text())), " ")
}

func (e *Extractor) firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstValue prefers a content attribute (meta tags) over element text.
func (e *Extractor) firstValue(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if val, ok := node.Attr("content"); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

func (e *Extractor) firstDateValue(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if val, ok := node.Attr("datetime"); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

// extractBreadcrumbs reads the category trail: the first crumb is the site
// root, the next two are category and subcategory.
func (e *Extractor) extractBreadcrumbs(doc *goquery.Document, draft *domain.ReviewDraft) {
	for _, sel := range e.selectors.Breadcrumbs {
		var names []string
		var hrefs []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			name := strings.TrimSpace(s.Text())
			if name == "" {
				return
			}
			href, _ := s.Attr("href")
			names = append(names, name)
			hrefs = append(hrefs, href)
		})
		if len(names) < 2 {
			continue
		}

		draft.CategoryName = names[1]
		draft.CategoryURL = hrefs[1]
		if len(names) > 2 {
			draft.SubcategoryName = names[2]
			draft.SubcategoryURL = hrefs[2]
		}
		return
	}
}

func (e *Extractor) extractProduct(doc *goquery.Document, sourceURL string, draft *domain.ReviewDraft) {
	draft.ProductName = e.firstText(doc, e.selectors.ProductName)
	for _, sel := range e.selectors.ProductLink {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
			draft.ProductURL = resolveURL(sourceURL, href)
			return
		}
	}
}

// extractImages collects content images in order, deduplicated, skipping
// default icon paths unless the URL sits under a user-content path.
func (e *Extractor) extractImages(doc *goquery.Document, sourceURL string) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, sel := range e.selectors.Images {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || strings.TrimSpace(src) == "" {
				if src, ok = s.Attr("data-src"); !ok {
					return
				}
			}
			resolved := resolveURL(sourceURL, strings.TrimSpace(src))
			if resolved == "" {
				return
			}
			if !acceptImage(resolved) {
				return
			}
			if _, dup := seen[resolved]; dup {
				return
			}
			seen[resolved] = struct{}{}
			out = append(out, resolved)
		})
		if len(out) > 0 {
			return out
		}
	}
	return out
}

func acceptImage(imgURL string) bool {
	lower := strings.ToLower(imgURL)
	for _, marker := range userContentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, token := range imageDenylist {
		if strings.Contains(lower, token) {
			return false
		}
	}
	return true
}

func (e *Extractor) itemList(doc *goquery.Document, selectors []string) []string {
	for _, sel := range selectors {
		var items []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

func parseCount(raw string) int {
	digits := strings.Builder{}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, _ := strconv.Atoi(digits.String())
	return n
}

func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	resolved, err := baseURL.Parse(href)
	if err != nil {
		return ""
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// languageSample bounds the detection input to the title plus the first 100
// words of content.
func languageSample(draft domain.ReviewDraft) string {
	words := strings.Fields(draft.Content)
	if len(words) > 100 {
		words = words[:100]
	}
	return strings.TrimSpace(draft.Title + " " + strings.Join(words, " "))
}
