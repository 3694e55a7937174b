package track

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Producer publishes clicks to a Redis Stream for the consumer worker to
// persist. XADD is cheap enough to sit on the redirect goroutine without
// delaying anything.
type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Record(ctx context.Context, click *Click) error {
	fields := map[string]interface{}{
		"short_link_id": click.ShortLinkID,
		"timestamp":     click.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if click.IPAddress != "" {
		fields["ip"] = click.IPAddress
	}
	if click.UserAgent != "" {
		fields["user_agent"] = click.UserAgent
	}
	if click.Referer != "" {
		fields["referer"] = click.Referer
	}

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err()

	if err != nil {
		return fmt.Errorf("failed to publish click: %w", err)
	}

	return nil
}
