package models

import "time"

// ShortLink is the persistent mapping from a slug to its destination URL.
// JSON field names follow the public API contract consumed by the web client.
type ShortLink struct {
	ID             string         `json:"id"`
	OriginalURL    string         `json:"originalURL"`
	Slug           string         `json:"slug"`
	ExpiresAt      *time.Time     `json:"expiresAt"`
	ClickCount     int64          `json:"clickCount"`
	LastAccessedAt *time.Time     `json:"lastAccessedAt"`
	UTMParameters  *UTMParameters `json:"utmParameters"`
	ShortURL       string         `json:"shortURL,omitempty"`
	QRCode         string         `json:"qrCode,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Expired reports whether the link is past its expiry at the given instant.
// Links without an expiry never expire.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// UTMParameters is the fixed set of campaign-tracking keys appended to the
// destination URL at creation time. Keys are appended in declaration order,
// after any query parameters the URL already carries.
type UTMParameters struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// Pairs returns the non-empty parameters as ordered key/value pairs.
func (u *UTMParameters) Pairs() [][2]string {
	if u == nil {
		return nil
	}
	all := [][2]string{
		{"utm_source", u.Source},
		{"utm_medium", u.Medium},
		{"utm_campaign", u.Campaign},
		{"utm_term", u.Term},
		{"utm_content", u.Content},
	}
	pairs := make([][2]string, 0, len(all))
	for _, kv := range all {
		if kv[1] != "" {
			pairs = append(pairs, kv)
		}
	}
	return pairs
}

// IsEmpty reports whether no parameter is set.
func (u *UTMParameters) IsEmpty() bool {
	return u == nil || len(u.Pairs()) == 0
}

// ClickEvent is one recorded resolution of a short link. Rows are append-only
// and immutable; the browser/OS/device columns are derived from the raw
// User-Agent once, at write time.
type ClickEvent struct {
	ID             string    `json:"id"`
	ShortLinkID    string    `json:"shortLinkId"`
	Timestamp      time.Time `json:"timestamp"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	Referer        string    `json:"referer,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	BrowserVersion string    `json:"browserVersion,omitempty"`
	OS             string    `json:"os,omitempty"`
	OSVersion      string    `json:"osVersion,omitempty"`
	Device         string    `json:"device,omitempty"`
	IsMobile       bool      `json:"isMobile"`
	IsBot          bool      `json:"isBot"`
}

// UnwrapResult describes one walk of a redirect chain. It is computed per
// request and never persisted. Err is a soft failure: the walk stopped early
// and UnwrappedURL holds the best-known final URL.
type UnwrapResult struct {
	OriginalURL   string   `json:"originalURL"`
	UnwrappedURL  string   `json:"unwrappedURL"`
	RedirectChain []string `json:"redirectChain"`
	HopCount      int      `json:"hopCount"`
	ElapsedMs     int64    `json:"elapsedMs"`
	Err           string   `json:"error,omitempty"`
}

// DailyCount is one calendar day's click total, date formatted YYYY-MM-DD (UTC).
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// MobileVsDesktop splits clicks by the mobile flag. Desktop literally means
// "not flagged mobile", so non-mobile bot traffic counts as desktop.
type MobileVsDesktop struct {
	Mobile  int64 `json:"mobile"`
	Desktop int64 `json:"desktop"`
}

// ClickAnalytics is the aggregate view over a link's click history, computed
// fresh on every stats request.
type ClickAnalytics struct {
	Total           int64            `json:"total"`
	Browsers        map[string]int64 `json:"browsers"`
	OS              map[string]int64 `json:"os"`
	Devices         map[string]int64 `json:"devices"`
	Referrers       map[string]int64 `json:"referrers"`
	OverTime        []DailyCount     `json:"overTime"`
	MobileVsDesktop MobileVsDesktop  `json:"mobileVsDesktop"`
}

// PageMetadata is the scraped OpenGraph summary of a destination page.
type PageMetadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	SiteName    string `json:"siteName"`
	Favicon     string `json:"favicon"`
}

type CreateShortLinkRequest struct {
	OriginalURL   string         `json:"originalUrl"`
	Slug          string         `json:"slug,omitempty"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
	UTMParameters *UTMParameters `json:"utmParameters,omitempty"`
}

type CreateShortLinkResponse struct {
	ShortURL     *ShortLink    `json:"shortUrl"`
	UnwrappedURL *UnwrapResult `json:"unwrappedURL,omitempty"`
}

// StatsResponse is a ShortLink plus its computed analytics.
type StatsResponse struct {
	ShortLink
	Clicks *ClickAnalytics `json:"clicks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
