package track

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linkcut/linkcut/internal/enrichment"
	"github.com/linkcut/linkcut/internal/storage"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestStoreRecorder_DerivesFieldsAtWriteTime(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewStoreRecorder(store, func(ua string) enrichment.UAInfo {
		return enrichment.UAInfo{Browser: "TestBrowser", OS: "TestOS", Device: "TestDevice", IsMobile: true}
	})

	click := &Click{
		ShortLinkID: "link-1",
		Timestamp:   time.Now(),
		UserAgent:   "whatever",
		Referer:     "https://example.com",
	}
	if err := rec.Record(context.Background(), click); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	events, err := store.ListClicks(context.Background(), "link-1")
	if err != nil {
		t.Fatalf("ListClicks failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.ID == "" {
		t.Error("expected a generated event ID")
	}
	if ev.Browser != "TestBrowser" || !ev.IsMobile {
		t.Errorf("expected injected parser output to be stored, got %+v", ev)
	}
	if ev.UserAgent != "whatever" || ev.Referer != "https://example.com" {
		t.Errorf("expected raw request facts preserved, got %+v", ev)
	}
}

func TestProducer_PublishesToStream(t *testing.T) {
	client := testRedis(t)
	p := NewProducer(client, "clicks:test")

	click := &Click{
		ShortLinkID: "link-42",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IPAddress:   "203.0.113.9",
		UserAgent:   "Mozilla/5.0",
	}
	if err := p.Record(context.Background(), click); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	msgs, err := client.XRange(context.Background(), "clicks:test", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Values["short_link_id"] != "link-42" {
		t.Errorf("unexpected message values: %v", msgs[0].Values)
	}
	if msgs[0].Values["ip"] != "203.0.113.9" {
		t.Errorf("expected ip field, got %v", msgs[0].Values)
	}
}

func TestParseMessage(t *testing.T) {
	click, ok := parseMessage(map[string]interface{}{
		"short_link_id": "link-7",
		"timestamp":     "2025-06-01T12:00:00Z",
		"ip":            "198.51.100.1",
		"user_agent":    "agent",
		"referer":       "https://ref.example",
	})
	if !ok {
		t.Fatal("expected message to parse")
	}
	if click.ShortLinkID != "link-7" || click.IPAddress != "198.51.100.1" {
		t.Errorf("unexpected click: %+v", click)
	}
	if !click.Timestamp.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp: %v", click.Timestamp)
	}
}

func TestParseMessage_MissingLinkID(t *testing.T) {
	if _, ok := parseMessage(map[string]interface{}{"timestamp": "x"}); ok {
		t.Error("expected message without short_link_id to be rejected")
	}
}

func TestConsumer_ProcessBatch(t *testing.T) {
	client := testRedis(t)
	store := storage.NewMemoryStorage()

	c := NewConsumer(client, store, ConsumerConfig{
		Stream:       "clicks:test",
		Group:        "writers",
		Consumer:     "worker-1",
		BatchSize:    10,
		BlockTime:    50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})

	ctx := context.Background()
	if err := client.XGroupCreateMkStream(ctx, "clicks:test", "writers", "0").Err(); err != nil {
		t.Fatalf("group create failed: %v", err)
	}

	p := NewProducer(client, "clicks:test")
	for i := 0; i < 3; i++ {
		if err := p.Record(ctx, &Click{ShortLinkID: "link-1", Timestamp: time.Now(), UserAgent: "Mozilla/5.0"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	if err := c.processBatch(ctx); err != nil {
		t.Fatalf("processBatch failed: %v", err)
	}

	events, err := store.ListClicks(ctx, "link-1")
	if err != nil {
		t.Fatalf("ListClicks failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 click rows, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Browser == "" {
			t.Errorf("expected derived browser field, got %+v", ev)
		}
	}
}
