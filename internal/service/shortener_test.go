package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/linkcut/linkcut/internal/cache"
	"github.com/linkcut/linkcut/internal/enrichment"
	"github.com/linkcut/linkcut/internal/models"
	"github.com/linkcut/linkcut/internal/storage"
	"github.com/linkcut/linkcut/internal/track"
)

// passthroughUnwrapper answers every URL with itself, zero hops.
type passthroughUnwrapper struct{}

func (passthroughUnwrapper) Unwrap(ctx context.Context, rawURL string) *models.UnwrapResult {
	return &models.UnwrapResult{
		OriginalURL:   rawURL,
		UnwrappedURL:  rawURL,
		RedirectChain: []string{rawURL},
	}
}

type fixedUnwrapper struct {
	unwrapped string
	hops      int
	err       string
}

func (u fixedUnwrapper) Unwrap(ctx context.Context, rawURL string) *models.UnwrapResult {
	return &models.UnwrapResult{
		OriginalURL:   rawURL,
		UnwrappedURL:  u.unwrapped,
		HopCount:      u.hops,
		RedirectChain: []string{rawURL, u.unwrapped},
		Err:           u.err,
	}
}

func newTestShortener(store storage.Storage) *Shortener {
	recorder := track.NewStoreRecorder(store, func(ua string) enrichment.UAInfo {
		info := enrichment.UAInfo{Browser: "TestBrowser", OS: "TestOS", Device: "desktop"}
		if strings.Contains(ua, "Mobile") {
			info.Device = "mobile"
			info.IsMobile = true
		}
		return info
	})

	s := NewShortener(store, cache.New(10), passthroughUnwrapper{}, recorder, "http://short.test")
	// Run fire-and-forget work inline so assertions see its effects.
	s.dispatch = func(fn func()) { fn() }
	return s
}

var slugFormat = regexp.MustCompile(`^[A-Za-z0-9_-]{8}$`)

func TestCreate_GeneratedSlug(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		link, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
			OriginalURL: "https://example.com/page",
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !slugFormat.MatchString(link.Slug) {
			t.Errorf("slug %q does not match expected format", link.Slug)
		}
		if seen[link.Slug] {
			t.Errorf("slug %q generated twice", link.Slug)
		}
		seen[link.Slug] = true

		if link.ClickCount != 0 {
			t.Errorf("expected clickCount 0, got %d", link.ClickCount)
		}
		if link.ShortURL != "http://short.test/"+link.Slug {
			t.Errorf("unexpected short URL %q", link.ShortURL)
		}
	}
}

func TestCreate_GeneratedSlugRetriesOnCollision(t *testing.T) {
	store := &collidingStorage{MemoryStorage: storage.NewMemoryStorage(), collisions: 2}
	s := newTestShortener(store)

	link, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if store.checks < 3 {
		t.Errorf("expected at least 3 uniqueness checks, got %d", store.checks)
	}
	if link.Slug == "" {
		t.Error("expected a slug despite collisions")
	}
}

// collidingStorage reports the first n generated slugs as taken.
type collidingStorage struct {
	*storage.MemoryStorage
	collisions int
	checks     int
}

func (s *collidingStorage) SlugExists(ctx context.Context, slug string) (bool, error) {
	s.checks++
	if s.checks <= s.collisions {
		return true, nil
	}
	return s.MemoryStorage.SlugExists(ctx, slug)
}

func TestCreate_CustomSlug(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())

	link, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
		Slug:        "My-Custom_1",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if link.Slug != "My-Custom_1" {
		t.Errorf("expected custom slug preserved exactly, got %q", link.Slug)
	}
}

func TestCreate_CustomSlugConflict(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)

	if _, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://first.example.com",
		Slug:        "taken",
	}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://second.example.com",
		Slug:        "taken",
	})
	if !errors.Is(err, ErrSlugConflict) {
		t.Fatalf("expected ErrSlugConflict, got %v", err)
	}

	// The original record is untouched.
	link, _ := store.GetLinkBySlug(context.Background(), "taken")
	if link.OriginalURL != "https://first.example.com" {
		t.Errorf("conflicting create must not overwrite: %q", link.OriginalURL)
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())

	tests := []models.CreateShortLinkRequest{
		{OriginalURL: ""},
		{OriginalURL: "not a url"},
		{OriginalURL: "ftp://example.com/file"},
		{OriginalURL: "https://example.com", Slug: "bad slug!"},
		{OriginalURL: "https://example.com", Slug: "api"},
	}
	for _, req := range tests {
		if _, _, err := s.Create(context.Background(), &req); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%+v: expected ErrInvalidInput, got %v", req, err)
		}
	}
}

func TestCreate_AppendsUTMAfterExistingParams(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())

	link, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL:   "https://e.com/p?z=1",
		UTMParameters: &models.UTMParameters{Source: "x", Medium: "y"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	want := "https://e.com/p?z=1&utm_source=x&utm_medium=y"
	if link.OriginalURL != want {
		t.Errorf("expected %q, got %q", want, link.OriginalURL)
	}
	if link.UTMParameters == nil || link.UTMParameters.Source != "x" {
		t.Error("expected UTM parameters persisted as structured metadata too")
	}
}

func TestCreate_UTMWithoutExistingQuery(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())

	link, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL:   "https://e.com/p",
		UTMParameters: &models.UTMParameters{Campaign: "launch day"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if want := "https://e.com/p?utm_campaign=launch+day"; link.OriginalURL != want {
		t.Errorf("expected %q, got %q", want, link.OriginalURL)
	}
}

func TestCreate_UnwrapReplacesWorkingURL(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)
	s.unwrap = fixedUnwrapper{unwrapped: "https://final.example.com/landing", hops: 2}

	link, result, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://t.co/abc",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if link.OriginalURL != "https://final.example.com/landing" {
		t.Errorf("expected unwrapped destination persisted, got %q", link.OriginalURL)
	}
	if result.HopCount != 2 {
		t.Errorf("expected unwrap result returned, got %+v", result)
	}
}

func TestCreate_UnwrapFailureIsSoft(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())
	s.unwrap = fixedUnwrapper{unwrapped: "https://t.co/abc", err: "connection refused"}

	link, result, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://t.co/abc",
	})
	if err != nil {
		t.Fatalf("Create must succeed despite unwrap failure, got %v", err)
	}
	if link.OriginalURL != "https://t.co/abc" {
		t.Errorf("expected submitted URL kept, got %q", link.OriginalURL)
	}
	if result.Err == "" {
		t.Error("expected unwrap error surfaced in the result for client display")
	}
}

func TestResolve_NotFound(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())

	if _, err := s.Resolve(context.Background(), "missing", RequestInfo{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_TracksAndIncrementsOncePerResolution(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)

	link, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
		Slug:        "tracked",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		dest, err := s.Resolve(context.Background(), "tracked", RequestInfo{UserAgent: "Mozilla/5.0"})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if dest != "https://example.com" {
			t.Errorf("unexpected destination %q", dest)
		}
	}

	stored, _ := store.GetLinkBySlug(context.Background(), "tracked")
	if stored.ClickCount != 3 {
		t.Errorf("expected clickCount 3, got %d", stored.ClickCount)
	}
	if stored.LastAccessedAt == nil {
		t.Error("expected lastAccessedAt to be set")
	}

	events, _ := store.ListClicks(context.Background(), link.ID)
	if len(events) != 3 {
		t.Errorf("expected exactly one click row per resolution, got %d", len(events))
	}
}

func TestResolve_ExpiredIsNotFoundAndNotCounted(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	expiry := base.Add(time.Hour)
	if _, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
		Slug:        "ephemeral",
		ExpiresAt:   &expiry,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Still active just before expiry.
	if _, err := s.Resolve(context.Background(), "ephemeral", RequestInfo{}); err != nil {
		t.Fatalf("Resolve before expiry failed: %v", err)
	}

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.cache = cache.New(10) // fresh cache so the storage path runs

	if _, err := s.Resolve(context.Background(), "ephemeral", RequestInfo{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired link, got %v", err)
	}

	stored, _ := store.GetLinkBySlug(context.Background(), "ephemeral")
	if stored.ClickCount != 1 {
		t.Errorf("expired resolution must not increment clickCount, got %d", stored.ClickCount)
	}
}

func TestResolve_CacheHitSkipsExpiryCheck(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	expiry := base.Add(time.Hour)
	if _, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
		Slug:        "cached",
		ExpiresAt:   &expiry,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// First resolution populates the cache.
	if _, err := s.Resolve(context.Background(), "cached", RequestInfo{}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Past expiry, the cached entry still resolves: hits bypass the check.
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	dest, err := s.Resolve(context.Background(), "cached", RequestInfo{})
	if err != nil {
		t.Fatalf("expected cache hit to resolve, got %v", err)
	}
	if dest != "https://example.com" {
		t.Errorf("unexpected destination %q", dest)
	}

	stored, _ := store.GetLinkBySlug(context.Background(), "cached")
	if stored.ClickCount != 2 {
		t.Errorf("cache hit must still increment the counter, got %d", stored.ClickCount)
	}
}

func TestResolve_CacheHitWithMissingRowDropsClick(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)

	link, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
		Slug:        "orphan",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Resolve(context.Background(), "orphan", RequestInfo{}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// The row disappears but the cache entry survives. The redirect must
	// still work, with the unattributable click dropped.
	empty := storage.NewMemoryStorage()
	s.store = empty

	dest, err := s.Resolve(context.Background(), "orphan", RequestInfo{UserAgent: "Mozilla/5.0"})
	if err != nil {
		t.Fatalf("expected cache hit to resolve, got %v", err)
	}
	if dest != "https://example.com" {
		t.Errorf("unexpected destination %q", dest)
	}

	events, _ := empty.ListClicks(context.Background(), link.ID)
	if len(events) != 0 {
		t.Errorf("expected no click rows without a backing link, got %d", len(events))
	}
}

func TestStats_NotFound(t *testing.T) {
	s := newTestShortener(storage.NewMemoryStorage())

	if _, err := s.Stats(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStats_ExpiredLinkRemainsQueryable(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	expiry := base.Add(time.Hour)
	if _, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
		Slug:        "history",
		ExpiresAt:   &expiry,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Resolve(context.Background(), "history", RequestInfo{UserAgent: "Mozilla/5.0 Mobile"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	s.now = func() time.Time { return base.Add(48 * time.Hour) }

	stats, err := s.Stats(context.Background(), "history")
	if err != nil {
		t.Fatalf("expected stats for expired link, got %v", err)
	}
	if stats.Clicks.Total != 1 {
		t.Errorf("expected total 1, got %d", stats.Clicks.Total)
	}
	if stats.Clicks.MobileVsDesktop.Mobile != 1 {
		t.Errorf("expected 1 mobile click, got %+v", stats.Clicks.MobileVsDesktop)
	}
}

func TestStats_Idempotent(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := newTestShortener(store)

	if _, _, err := s.Create(context.Background(), &models.CreateShortLinkRequest{
		OriginalURL: "https://example.com",
		Slug:        "steady",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Resolve(context.Background(), "steady", RequestInfo{UserAgent: "Mozilla/5.0"}); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
	}

	first, err := s.Stats(context.Background(), "steady")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	second, err := s.Stats(context.Background(), "steady")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if first.Clicks.Total != second.Clicks.Total {
		t.Errorf("totals differ: %d vs %d", first.Clicks.Total, second.Clicks.Total)
	}
	if len(first.Clicks.Browsers) != len(second.Clicks.Browsers) {
		t.Errorf("browser breakdowns differ: %v vs %v", first.Clicks.Browsers, second.Clicks.Browsers)
	}
}
