package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/linkcut/linkcut/internal/models"
)

// MemoryStorage is the in-process implementation used by tests and local
// development without Postgres.
type MemoryStorage struct {
	mu     sync.RWMutex
	links  map[string]*models.ShortLink // keyed by slug
	clicks map[string][]*models.ClickEvent
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		links:  make(map[string]*models.ShortLink),
		clicks: make(map[string][]*models.ClickEvent),
	}
}

func (s *MemoryStorage) SaveLink(ctx context.Context, link *models.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Slug]; exists {
		return ErrDuplicateSlug
	}

	copied := *link
	s.links[link.Slug] = &copied
	return nil
}

func (s *MemoryStorage) GetLinkBySlug(ctx context.Context, slug string) (*models.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, exists := s.links[slug]
	if !exists {
		return nil, nil
	}

	copied := *link
	return &copied, nil
}

func (s *MemoryStorage) SlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.links[slug]
	return exists, nil
}

func (s *MemoryStorage) RecordHit(ctx context.Context, slug string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[slug]
	if !exists {
		return fmt.Errorf("link with slug %s not found", slug)
	}

	link.ClickCount++
	link.LastAccessedAt = &at
	link.UpdatedAt = at
	return nil
}

func (s *MemoryStorage) SaveClick(ctx context.Context, ev *models.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *ev
	s.clicks[ev.ShortLinkID] = append(s.clicks[ev.ShortLinkID], &copied)
	return nil
}

func (s *MemoryStorage) ListClicks(ctx context.Context, shortLinkID string) ([]*models.ClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*models.ClickEvent, len(s.clicks[shortLinkID]))
	copy(events, s.clicks[shortLinkID])

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}
