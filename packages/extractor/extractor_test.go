package extractor

import (
	"testing"
	"time"
)

const reviewPage = `<!DOCTYPE html>
<html><head><title>page</title></head><body>
<div class="breadcrumbs">
  <a href="/">Главная</a>
  <a href="/electronics">Электроника</a>
  <a href="/electronics/phones">Телефоны</a>
</div>
<div class="product-header">
  <a class="product-name" href="/product/superphone-x">Superphone X</a>
</div>
<h1 class="review-title">Отличный телефон за свои деньги</h1>
<div class="review-rating"><meta itemprop="ratingValue" content="4,5"></div>
<time datetime="2023-10-17T12:30:00Z">17 октября 2023</time>
<span class="likes-counter">128 people</span>
<span class="dislikes-counter">7</span>
<div class="review-body">
  <img src="/static/icons/star-icon.png">
  <img src="/uploads/reviews/photo1.jpg">
  <img src="https://cdn.example.com/imagecache/logo-shot.jpg">
  <img src="/uploads/reviews/photo1.jpg">
  <img data-src="/uploads/reviews/photo2.jpg">
  <div class="description">Пользуюсь этим телефоном уже полгода и могу сказать, что он полностью оправдал ожидания.</div>
</div>
<div class="review-plus"><ul><li>Батарея</li><li>Экран</li></ul></div>
<div class="review-minus"><ul><li>Цена</li></ul></div>
<script>var tracker = "ignore me";</script>
</body></html>`

func TestParseReviewPage(t *testing.T) {
	e := New(DefaultSelectors)
	draft, err := e.Parse(reviewPage, "https://src.example/electronics/phones/review-1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if draft.Title != "Отличный телефон за свои деньги" {
		t.Errorf("title = %q", draft.Title)
	}
	if draft.Rating == nil || *draft.Rating != 4.5 {
		t.Errorf("rating = %v, want 4.5", draft.Rating)
	}
	if draft.Likes != 128 || draft.Dislikes != 7 {
		t.Errorf("votes = %d/%d, want 128/7", draft.Likes, draft.Dislikes)
	}
	if draft.CategoryName != "Электроника" || draft.CategoryURL != "/electronics" {
		t.Errorf("category = %q (%q)", draft.CategoryName, draft.CategoryURL)
	}
	if draft.SubcategoryName != "Телефоны" {
		t.Errorf("subcategory = %q", draft.SubcategoryName)
	}
	if draft.ProductName != "Superphone X" {
		t.Errorf("product = %q", draft.ProductName)
	}
	if draft.ProductURL != "https://src.example/product/superphone-x" {
		t.Errorf("product url = %q", draft.ProductURL)
	}
	if draft.Published == nil {
		t.Fatal("published not parsed")
	}
	want := time.Date(2023, time.October, 17, 12, 30, 0, 0, time.UTC)
	if !draft.Published.Equal(want) {
		t.Errorf("published = %v, want %v", draft.Published, want)
	}
	if len(draft.Pros) != 2 || draft.Pros[0] != "Батарея" {
		t.Errorf("pros = %v", draft.Pros)
	}
	if len(draft.Cons) != 1 || draft.Cons[0] != "Цена" {
		t.Errorf("cons = %v", draft.Cons)
	}
	if draft.Language != "rus" {
		t.Errorf("language = %q, want rus", draft.Language)
	}
}

func TestParseImageFiltering(t *testing.T) {
	e := New(DefaultSelectors)
	draft, err := e.Parse(reviewPage, "https://src.example/electronics/phones/review-1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{
		"https://src.example/uploads/reviews/photo1.jpg",
		"https://cdn.example.com/imagecache/logo-shot.jpg",
		"https://src.example/uploads/reviews/photo2.jpg",
	}
	if len(draft.ImageURLs) != len(want) {
		t.Fatalf("images = %v, want %v", draft.ImageURLs, want)
	}
	for i := range want {
		if draft.ImageURLs[i] != want[i] {
			t.Errorf("images[%d] = %q, want %q", i, draft.ImageURLs[i], want[i])
		}
	}
}

func TestAcceptImage(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://src.example/uploads/reviews/photo.jpg", true},
		{"https://src.example/static/avatar-default.png", false},
		{"https://src.example/static/sprite.svg", false},
		// User-content paths win over denylist tokens.
		{"https://src.example/imagecache/avatar-of-product.jpg", true},
		{"https://src.example/media/shot.jpg", true},
	}
	for _, tc := range cases {
		if got := acceptImage(tc.url); got != tc.want {
			t.Errorf("acceptImage(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestParseSelectorPrecedence(t *testing.T) {
	html := `<html><body>
	<h1>Generic headline</h1>
	<h1 class="review-title">Specific title</h1>
	</body></html>`

	e := New(DefaultSelectors)
	draft, err := e.Parse(html, "https://src.example/r/1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if draft.Title != "Specific title" {
		t.Errorf("title = %q, specific selector should win over the h1 catch-all", draft.Title)
	}
}

func TestParseSparsePageIsNotAnError(t *testing.T) {
	e := New(DefaultSelectors)
	draft, err := e.Parse("<html><body><p>nothing here</p></body></html>", "https://src.example/r/2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if draft.Title != "" || draft.CategoryName != "" || len(draft.ImageURLs) != 0 {
		t.Errorf("sparse page produced fields: %+v", draft)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2023-10-17T12:30:00Z", time.Date(2023, 10, 17, 12, 30, 0, 0, time.UTC), true},
		{"17.10.2023", time.Date(2023, 10, 17, 0, 0, 0, 0, time.UTC), true},
		{"17 октября 2023", time.Date(2023, 10, 17, 0, 0, 0, 0, time.UTC), true},
		{"5 мая 2021", time.Date(2021, 5, 5, 0, 0, 0, 0, time.UTC), true},
		{"3 окт. 2022", time.Date(2022, 10, 3, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"42 октября 2023", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := parseDate(tc.raw)
		if ok != tc.ok {
			t.Errorf("parseDate(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
			continue
		}
		if ok && !got.Equal(tc.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestVisibleTextStripsScripts(t *testing.T) {
	html := `<html><body><p>keep this</p><script>drop()</script><style>.x{}</style></body></html>`
	got := VisibleText(html)
	if got != "keep this" {
		t.Errorf("VisibleText = %q", got)
	}
}

func TestListingLinks(t *testing.T) {
	html := `<html><body>
	<div class="review-list">
	  <a class="item-title" href="/electronics/phones/review-1">One</a>
	  <a class="item-title" href="/electronics/phones/review-2#comments">Two</a>
	  <a class="item-title" href="/electronics/phones/review-1">Dup</a>
	  <a class="item-title" href="https://elsewhere.example/review-3">Offsite</a>
	</div>
	</body></html>`

	links := ListingLinks(html, "https://src.example/electronics/phones")
	want := []string{
		"https://src.example/electronics/phones/review-1",
		"https://src.example/electronics/phones/review-2",
	}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestSlugFromURL(t *testing.T) {
	if got := SlugFromURL("https://src.example/electronics/phones/review-otlichnyy/"); got != "review-otlichnyy" {
		t.Errorf("slug = %q", got)
	}
	if got := SlugFromURL("https://src.example/"); got != "src.example" {
		t.Errorf("root slug = %q", got)
	}
}
