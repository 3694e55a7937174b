// Package track is the fire-and-forget click pipeline. The service hands a
// raw click to a Recorder and moves on; User-Agent facts are derived and the
// row written downstream, off the redirect path.
package track

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/linkcut/linkcut/internal/enrichment"
	"github.com/linkcut/linkcut/internal/models"
	"github.com/linkcut/linkcut/internal/storage"
)

// Click carries the raw request facts captured on a redirect.
type Click struct {
	ShortLinkID string
	Timestamp   time.Time
	IPAddress   string
	UserAgent   string
	Referer     string
}

// Recorder accepts one click per successful resolution. Implementations must
// never be load-bearing for the redirect response; callers log failures and
// drop them.
type Recorder interface {
	Record(ctx context.Context, click *Click) error
}

// StoreRecorder tags and persists clicks synchronously. It is the path used
// when Redis is not configured, and in tests.
type StoreRecorder struct {
	store storage.Storage
	parse enrichment.ParseFunc
}

func NewStoreRecorder(store storage.Storage, parse enrichment.ParseFunc) *StoreRecorder {
	if parse == nil {
		parse = enrichment.Parse
	}
	return &StoreRecorder{store: store, parse: parse}
}

func (r *StoreRecorder) Record(ctx context.Context, click *Click) error {
	return r.store.SaveClick(ctx, newEvent(click, r.parse))
}

// newEvent derives the denormalized UA fields; they are stored once and never
// recomputed on read.
func newEvent(click *Click, parse enrichment.ParseFunc) *models.ClickEvent {
	info := parse(click.UserAgent)

	return &models.ClickEvent{
		ID:             uuid.NewString(),
		ShortLinkID:    click.ShortLinkID,
		Timestamp:      click.Timestamp,
		IPAddress:      click.IPAddress,
		UserAgent:      click.UserAgent,
		Referer:        click.Referer,
		Browser:        info.Browser,
		BrowserVersion: info.BrowserVersion,
		OS:             info.OS,
		OSVersion:      info.OSVersion,
		Device:         info.Device,
		IsMobile:       info.IsMobile,
		IsBot:          info.IsBot,
	}
}
