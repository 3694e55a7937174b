package storage

import (
	"context"
	"errors"
	"time"

	"github.com/linkcut/linkcut/internal/models"
)

// ErrDuplicateSlug surfaces a unique-constraint violation on the slug column.
// It is the backstop for two concurrent creations racing the same slug past
// the existence check.
var ErrDuplicateSlug = errors.New("slug already exists")

// Storage persists short links and their click history. Lookups return
// (nil, nil) when no row exists; expiry filtering is the caller's concern so
// expired links stay queryable for stats.
type Storage interface {
	SaveLink(ctx context.Context, link *models.ShortLink) error
	GetLinkBySlug(ctx context.Context, slug string) (*models.ShortLink, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	// RecordHit bumps click_count by one and stamps last_accessed_at. The
	// increment happens at the storage layer so concurrent resolutions
	// never lose counts to read-modify-write races.
	RecordHit(ctx context.Context, slug string, at time.Time) error

	SaveClick(ctx context.Context, ev *models.ClickEvent) error

	// ListClicks returns a link's click events ordered by time ascending.
	ListClicks(ctx context.Context, shortLinkID string) ([]*models.ClickEvent, error)
}
