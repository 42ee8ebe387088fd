package cache

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"crashgame/internal/game"
)

const (
	REDIS_CHANNEL_EVENTS   = "crash:events"
	REDIS_KEY_ROUND_LATEST = "crash:round:latest"
	ROUND_LATEST_TTL       = 10 * time.Minute
	PUBLISHER_BUFFER       = 512
	PUBLISH_TIMEOUT        = 2 * time.Second
)

// Publisher mirrors broadcast round events to Redis so other processes can
// follow live rounds. It implements game.Sink; unicast events are skipped.
type Publisher struct {
	client *redis.Client
	events chan game.Event
	logger *log.Logger
}

func NewPublisher(client *redis.Client, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Publisher{
		client: client,
		events: make(chan game.Event, PUBLISHER_BUFFER),
		logger: logger.WithPrefix("cache"),
	}
}

// Publish queues an event without blocking.
func (p *Publisher) Publish(event game.Event) {
	if event.ClientID != "" {
		return
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Publisher queue full, dropping event", "type", event.Type)
	}
}

// Run forwards queued events until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-p.events:
			if err := p.forward(ctx, event); err != nil {
				p.logger.Warn("Failed to publish event", "type", event.Type, "error", err)
			}
		}
	}
}

func (p *Publisher) forward(ctx context.Context, event game.Event) error {
	data, err := json.Marshal(event.Message())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, PUBLISH_TIMEOUT)
	defer cancel()

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, REDIS_CHANNEL_EVENTS, data)
	if event.Type != game.EventMultiplierUpdate {
		pipe.Set(ctx, REDIS_KEY_ROUND_LATEST, data, ROUND_LATEST_TTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}
