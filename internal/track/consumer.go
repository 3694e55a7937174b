package track

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkcut/linkcut/internal/enrichment"
	"github.com/linkcut/linkcut/internal/logger"
	"github.com/linkcut/linkcut/internal/storage"
)

// Consumer drains the click stream in batches and writes one link_clicks row
// per message. It runs as a goroutine inside the server process.
type Consumer struct {
	client *redis.Client
	store  storage.Storage
	parse  enrichment.ParseFunc
	log    *logger.Logger

	stream       string
	group        string
	consumer     string
	batchSize    int
	blockTime    time.Duration
	pollInterval time.Duration
}

type ConsumerConfig struct {
	Stream       string
	Group        string
	Consumer     string
	BatchSize    int
	BlockTime    time.Duration
	PollInterval time.Duration
}

func NewConsumer(client *redis.Client, store storage.Storage, cfg ConsumerConfig) *Consumer {
	return &Consumer{
		client:       client,
		store:        store,
		parse:        enrichment.Parse,
		log:          logger.New("click-consumer"),
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		batchSize:    cfg.BatchSize,
		blockTime:    cfg.BlockTime,
		pollInterval: cfg.PollInterval,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.processBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("failed to process batch: %v", err)
			time.Sleep(c.pollInterval)
		}
	}
}

// processBatch reads up to batchSize messages, persists each as a click row,
// and acknowledges what was written. A row that fails to insert stays in the
// group's pending list rather than being acked and lost.
func (c *Consumer) processBatch(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    int64(c.batchSize),
		Block:    c.blockTime,
	}).Result()

	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		acked := make([]string, 0, len(stream.Messages))

		for _, msg := range stream.Messages {
			click, ok := parseMessage(msg.Values)
			if !ok {
				c.log.Warn("dropping malformed click message %s", msg.ID)
				acked = append(acked, msg.ID)
				continue
			}

			if err := c.store.SaveClick(ctx, newEvent(click, c.parse)); err != nil {
				c.log.Error("failed to save click %s: %v", msg.ID, err)
				continue
			}
			acked = append(acked, msg.ID)
		}

		if len(acked) > 0 {
			if err := c.client.XAck(ctx, c.stream, c.group, acked...).Err(); err != nil {
				c.log.Error("failed to ack %d messages: %v", len(acked), err)
			}
		}
	}

	return nil
}

func parseMessage(values map[string]interface{}) (*Click, bool) {
	linkID, ok := values["short_link_id"].(string)
	if !ok || linkID == "" {
		return nil, false
	}

	ts := time.Now().UTC()
	if raw, ok := values["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			ts = parsed
		}
	}

	click := &Click{
		ShortLinkID: linkID,
		Timestamp:   ts,
	}
	if ip, ok := values["ip"].(string); ok {
		click.IPAddress = ip
	}
	if ua, ok := values["user_agent"].(string); ok {
		click.UserAgent = ua
	}
	if ref, ok := values["referer"].(string); ok {
		click.Referer = ref
	}

	return click, true
}
