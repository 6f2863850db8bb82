// Package notify publishes meet-complete messages to Kafka for the
// external review workflow. With no brokers configured the publisher is
// disabled and every call is a no-op.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ppiankov/heatsheet/internal/model"
)

// DefaultTopic receives meet-complete messages unless configured
// otherwise.
const DefaultTopic = "meets.crawled"

// messageWriter is the slice of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MeetComplete is the message published after a crawl job finishes.
type MeetComplete struct {
	JobID         string    `json:"job_id,omitempty"`
	MeetURL       string    `json:"meet_url"`
	Season        string    `json:"season"`
	Title         string    `json:"title,omitempty"`
	Events        int       `json:"events"`
	SkippedEvents int       `json:"skipped_events"`
	ResultPath    string    `json:"result_path,omitempty"`
	CrawledAt     time.Time `json:"crawled_at"`
}

// Publisher sends meet-complete notifications.
type Publisher struct {
	writer  messageWriter
	topic   string
	log     *slog.Logger
	enabled bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.log = l }
}

// WithWriter replaces the Kafka writer. Tests inject a capture here.
func WithWriter(w messageWriter) Option {
	return func(p *Publisher) { p.writer = w }
}

// New creates a publisher from the notification configuration. Messages
// are keyed by meet URL so re-crawls of one meet land on one partition.
func New(cfg model.NotifyConfig, opts ...Option) *Publisher {
	p := &Publisher{
		topic:   cfg.Topic,
		log:     slog.Default(),
		enabled: len(cfg.Brokers) > 0,
	}
	if p.topic == "" {
		p.topic = DefaultTopic
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.enabled && p.writer == nil {
		p.writer = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  p.topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		}
	}
	return p
}

// Enabled reports whether brokers are configured.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish sends one meet-complete message. Disabled publishers accept
// and drop it.
func (p *Publisher) Publish(ctx context.Context, msg MeetComplete) error {
	if !p.enabled {
		p.log.Debug("meet notification skipped, no brokers configured", "meet", msg.MeetURL)
		return nil
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding meet notification: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.MeetURL),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publishing meet notification: %w", err)
	}

	p.log.Info("meet notification published",
		"topic", p.topic, "meet", msg.MeetURL, "events", msg.Events)
	return nil
}

// Close releases the Kafka writer.
func (p *Publisher) Close() error {
	if !p.enabled || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
