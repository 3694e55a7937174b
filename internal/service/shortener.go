// Package service orchestrates slug resolution, unwrapping, caching, and
// click tracking into the create/redirect/stats operations.
package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/linkcut/linkcut/internal/analytics"
	"github.com/linkcut/linkcut/internal/cache"
	"github.com/linkcut/linkcut/internal/logger"
	"github.com/linkcut/linkcut/internal/models"
	"github.com/linkcut/linkcut/internal/qrcode"
	"github.com/linkcut/linkcut/internal/slug"
	"github.com/linkcut/linkcut/internal/storage"
	"github.com/linkcut/linkcut/internal/track"
)

// Unwrapper resolves a submitted URL to its final redirect destination.
// Failure is soft: the result carries an error string and the service keeps
// the submitted URL.
type Unwrapper interface {
	Unwrap(ctx context.Context, rawURL string) *models.UnwrapResult
}

// RequestInfo is what a redirect request contributes to its click event.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	Referer   string
}

type Shortener struct {
	store    storage.Storage
	cache    *cache.Cache
	unwrap   Unwrapper
	recorder track.Recorder
	log      *logger.Logger
	baseURL  string

	// now and dispatch are swappable for deterministic tests: expiry is a
	// wall-clock predicate and tracking is fire-and-forget.
	now      func() time.Time
	dispatch func(fn func())

	// trackTimeout bounds the background tracking writes, which outlive
	// the request context on purpose.
	trackTimeout time.Duration
}

func NewShortener(store storage.Storage, urlCache *cache.Cache, unwrapper Unwrapper, recorder track.Recorder, baseURL string) *Shortener {
	return &Shortener{
		store:        store,
		cache:        urlCache,
		unwrap:       unwrapper,
		recorder:     recorder,
		log:          logger.New("shortener"),
		baseURL:      baseURL,
		now:          time.Now,
		dispatch:     func(fn func()) { go fn() },
		trackTimeout: 10 * time.Second,
	}
}

// Create builds and persists a new short link. Unwrapping is best-effort
// enrichment: its failure never blocks creation. The returned UnwrapResult is
// included for client display even when it soft-failed.
func (s *Shortener) Create(ctx context.Context, params *models.CreateShortLinkRequest) (*models.ShortLink, *models.UnwrapResult, error) {
	if params.OriginalURL == "" {
		return nil, nil, fmt.Errorf("%w: original URL is required", ErrInvalidInput)
	}
	if !isValidURL(params.OriginalURL) {
		return nil, nil, fmt.Errorf("%w: invalid URL format", ErrInvalidInput)
	}

	workingURL := params.OriginalURL
	result := s.unwrap.Unwrap(ctx, params.OriginalURL)
	if result.Err == "" {
		workingURL = result.UnwrappedURL
	} else {
		s.log.Warn("unwrap failed for %s: %s", params.OriginalURL, result.Err)
	}

	if !params.UTMParameters.IsEmpty() {
		workingURL = appendUTM(workingURL, params.UTMParameters)
	}

	linkSlug, err := s.resolveSlug(ctx, params.Slug)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	link := &models.ShortLink{
		ID:            uuid.NewString(),
		OriginalURL:   workingURL,
		Slug:          linkSlug,
		ExpiresAt:     params.ExpiresAt,
		ClickCount:    0,
		UTMParameters: params.UTMParameters,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.SaveLink(ctx, link); err != nil {
		if err == storage.ErrDuplicateSlug {
			// Unique-index backstop for a creation race on the same slug.
			return nil, nil, ErrSlugConflict
		}
		return nil, nil, fmt.Errorf("failed to save link: %w", err)
	}

	link.ShortURL = s.baseURL + "/" + link.Slug
	if qr, err := qrcode.DataURI(link.ShortURL); err == nil {
		link.QRCode = qr
	} else {
		s.log.Warn("failed to generate QR code for %s: %v", link.Slug, err)
	}

	return link, result, nil
}

// resolveSlug validates a custom slug or generates a fresh one, either way
// checked against storage for uniqueness.
func (s *Shortener) resolveSlug(ctx context.Context, custom string) (string, error) {
	if custom != "" {
		if err := slug.Validate(custom); err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		exists, err := s.store.SlugExists(ctx, custom)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if exists {
			return "", ErrSlugConflict
		}
		return custom, nil
	}

	// Collisions at 8 hex chars are rare but the loop never assumes that.
	for {
		candidate := slug.Generate(slug.DefaultLength)
		exists, err := s.store.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

// Resolve returns the destination URL for a slug and dispatches click
// tracking off the request path. The redirect response never waits on
// tracking writes; their failures are logged and dropped.
func (s *Shortener) Resolve(ctx context.Context, linkSlug string, info RequestInfo) (string, error) {
	if destination, found := s.cache.Get(linkSlug); found {
		// The hit path trusts the cache for the URL and storage for the
		// link id, and skips the expiry check entirely.
		s.dispatch(func() { s.trackCacheHit(linkSlug, info) })
		return destination, nil
	}

	link, err := s.store.GetLinkBySlug(ctx, linkSlug)
	if err != nil {
		return "", fmt.Errorf("failed to load link: %w", err)
	}
	if link == nil {
		return "", ErrNotFound
	}
	if link.Expired(s.now()) {
		// Expired reads exactly like never-existed on this path.
		return "", ErrNotFound
	}

	s.dispatch(func() { s.trackClick(link.ID, linkSlug, info) })
	s.cache.Put(linkSlug, link.OriginalURL)

	return link.OriginalURL, nil
}

// trackCacheHit looks the record up by slug to recover its id, then records
// the click. The lookup cost lands on the background goroutine, not the
// redirect.
func (s *Shortener) trackCacheHit(linkSlug string, info RequestInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), s.trackTimeout)
	defer cancel()

	link, err := s.store.GetLinkBySlug(ctx, linkSlug)
	if err != nil {
		s.log.Error("failed to load link %s for tracking: %v", linkSlug, err)
		return
	}
	if link == nil {
		// The cache can outlive the row. Nothing to attribute the click to.
		s.log.Warn("link %s no longer in storage, dropping click", linkSlug)
		return
	}

	s.track(ctx, link.ID, linkSlug, info)
}

func (s *Shortener) trackClick(linkID, linkSlug string, info RequestInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), s.trackTimeout)
	defer cancel()

	s.track(ctx, linkID, linkSlug, info)
}

func (s *Shortener) track(ctx context.Context, linkID, linkSlug string, info RequestInfo) {
	now := s.now()

	if err := s.store.RecordHit(ctx, linkSlug, now); err != nil {
		s.log.Error("failed to record hit for %s: %v", linkSlug, err)
	}

	click := &track.Click{
		ShortLinkID: linkID,
		Timestamp:   now,
		IPAddress:   info.IPAddress,
		UserAgent:   info.UserAgent,
		Referer:     info.Referer,
	}
	if err := s.recorder.Record(ctx, click); err != nil {
		s.log.Error("failed to record click for %s: %v", linkSlug, err)
	}
}

// Stats returns the link and its aggregated click analytics. Expiry does not
// hide a link here: historical stats stay queryable after expiry.
func (s *Shortener) Stats(ctx context.Context, linkSlug string) (*models.StatsResponse, error) {
	link, err := s.store.GetLinkBySlug(ctx, linkSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}
	if link == nil {
		return nil, ErrNotFound
	}

	events, err := s.store.ListClicks(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}

	link.ShortURL = s.baseURL + "/" + link.Slug

	return &models.StatsResponse{
		ShortLink: *link,
		Clicks:    analytics.Aggregate(events),
	}, nil
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// appendUTM adds the UTM pairs after any existing query parameters.
// Duplicates are appended, never replaced, and existing parameter order is
// left untouched.
func appendUTM(rawURL string, utm *models.UTMParameters) string {
	pairs := utm.Pairs()
	if len(pairs) == 0 {
		return rawURL
	}

	extra := ""
	for i, kv := range pairs {
		if i > 0 {
			extra += "&"
		}
		extra += url.QueryEscape(kv[0]) + "=" + url.QueryEscape(kv[1])
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if u.RawQuery != "" {
		u.RawQuery += "&" + extra
	} else {
		u.RawQuery = extra
	}

	return u.String()
}
