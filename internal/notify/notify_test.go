package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ppiankov/heatsheet/internal/model"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishDelivers(t *testing.T) {
	cw := &captureWriter{}
	p := New(model.NotifyConfig{Brokers: []string{"localhost:9092"}, Topic: "meets.test"},
		WithWriter(cw), WithLogger(quietLogger()))

	if !p.Enabled() {
		t.Fatal("publisher with brokers should be enabled")
	}

	msg := MeetComplete{
		JobID:         "job-1",
		MeetURL:       "https://portale.example/meet/812",
		Season:        "2024",
		Title:         "Trofeo Invernale",
		Events:        14,
		SkippedEvents: 1,
		ResultPath:    "results/2024/trofeo-invernale.json",
		CrawledAt:     time.Date(2024, 12, 15, 18, 0, 0, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(cw.msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(cw.msgs))
	}
	if got := string(cw.msgs[0].Key); got != msg.MeetURL {
		t.Errorf("message key = %q, want meet URL", got)
	}

	var decoded MeetComplete
	if err := json.Unmarshal(cw.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if decoded.Season != "2024" || decoded.Events != 14 || decoded.SkippedEvents != 1 {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestPublishDisabledWithoutBrokers(t *testing.T) {
	cw := &captureWriter{}
	p := New(model.NotifyConfig{}, WithWriter(cw), WithLogger(quietLogger()))

	if p.Enabled() {
		t.Fatal("publisher without brokers should be disabled")
	}
	if err := p.Publish(context.Background(), MeetComplete{MeetURL: "https://x"}); err != nil {
		t.Fatalf("disabled Publish: %v", err)
	}
	if len(cw.msgs) != 0 {
		t.Errorf("disabled publisher wrote %d messages", len(cw.msgs))
	}
	if err := p.Close(); err != nil {
		t.Fatalf("disabled Close: %v", err)
	}
	if cw.closed {
		t.Error("disabled Close touched the writer")
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	cw := &captureWriter{err: errors.New("broker down")}
	p := New(model.NotifyConfig{Brokers: []string{"localhost:9092"}},
		WithWriter(cw), WithLogger(quietLogger()))

	err := p.Publish(context.Background(), MeetComplete{MeetURL: "https://x"})
	if err == nil {
		t.Fatal("expected error from failing writer")
	}
	if !strings.Contains(err.Error(), "publishing meet notification") {
		t.Errorf("error not wrapped: %v", err)
	}
}

func TestDefaultTopicApplied(t *testing.T) {
	p := New(model.NotifyConfig{Brokers: []string{"localhost:9092"}},
		WithWriter(&captureWriter{}), WithLogger(quietLogger()))

	if p.topic != DefaultTopic {
		t.Errorf("topic = %q, want %q", p.topic, DefaultTopic)
	}
}

func TestCloseReleasesWriter(t *testing.T) {
	cw := &captureWriter{}
	p := New(model.NotifyConfig{Brokers: []string{"localhost:9092"}},
		WithWriter(cw), WithLogger(quietLogger()))

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !cw.closed {
		t.Error("Close did not reach the writer")
	}
}
