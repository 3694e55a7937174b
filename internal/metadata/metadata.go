// Package metadata scrapes OpenGraph and related tags from a destination
// page so the client can preview what a link points at.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkcut/linkcut/internal/models"
)

const (
	DefaultFetchTimeout = 12 * time.Second

	// Some sites vary content by agent; announce ourselves as a bot.
	fetchUserAgent = "Mozilla/5.0 (compatible; LinkcutBot/1.0)"
)

type Scraper struct {
	client *http.Client
}

func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Scraper{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the page and extracts title, description, image, site name,
// and favicon. Failures are terminal for this operation only; callers map
// them to a 500 without touching any other flow.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*models.PageMetadata, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	meta := &models.PageMetadata{
		URL:         rawURL,
		Title:       firstNonEmpty(doc.Find("title").First().Text(), metaProperty(doc, "og:title")),
		Description: firstNonEmpty(metaName(doc, "description"), metaProperty(doc, "og:description")),
		Image:       metaProperty(doc, "og:image"),
		SiteName:    metaProperty(doc, "og:site_name"),
		Favicon:     faviconURL(doc, parsed),
	}

	return meta, nil
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}

func metaName(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content")
	return strings.TrimSpace(content)
}

// faviconURL picks the page's declared icon, resolving relative references,
// and falls back to the conventional /favicon.ico location.
func faviconURL(doc *goquery.Document, page *url.URL) string {
	var href string
	for _, rel := range []string{"icon", "shortcut icon", "apple-touch-icon"} {
		href, _ = doc.Find(fmt.Sprintf(`link[rel=%q]`, rel)).First().Attr("href")
		if href != "" {
			break
		}
	}

	if href == "" {
		return page.Scheme + "://" + page.Host + "/favicon.ico"
	}

	if ref, err := url.Parse(href); err == nil {
		return page.ResolveReference(ref).String()
	}
	return href
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
