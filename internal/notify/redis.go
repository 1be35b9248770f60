package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pingwatch/internal/domain"
)

// DefaultChannel is used when no channel is configured
const DefaultChannel = "pingwatch"

// RedisConfig selects the redis server and channel
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// publisher is the part of *redis.Client the notifier uses
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Message is the JSON envelope published on the channel
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	At   time.Time       `json:"at"`
}

// Redis publishes notifications and other payloads on a pub/sub channel
type Redis struct {
	client  publisher
	channel string
}

// NewRedis connects lazily; no command is sent until the first publish
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   1,
	})
	return newRedis(client, cfg.Channel)
}

func newRedis(client publisher, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

// Notify publishes n as a "notification" message
func (r *Redis) Notify(ctx context.Context, n domain.Notification) error {
	return r.Publish(ctx, "notification", n)
}

// Publish sends v wrapped in a Message of the given type
func (r *Redis) Publish(ctx context.Context, typ string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	msg, err := json.Marshal(Message{Type: typ, Data: data, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", r.channel, err)
	}
	return nil
}

// Close releases the connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}
