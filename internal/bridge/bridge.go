package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/baes-monitor/baes-core/internal/infrastructure/mqtt"
)

// Poster sends readings to the API.
type Poster interface {
	PostStatus(ctx context.Context, r *Reading) error
}

// Publisher republishes refused frames.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging surface the bridge needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Bridge handles gateway frames.
type Bridge struct {
	poster    Poster
	publisher Publisher
	clientID  string
	timeout   time.Duration
	logger    Logger
}

// New returns a Bridge posting through poster. Refused frames go to
// publisher under the clientID's rejected topic when publisher is set.
func New(poster Poster, publisher Publisher, clientID string) *Bridge {
	return &Bridge{
		poster:    poster,
		publisher: publisher,
		clientID:  clientID,
		timeout:   10 * time.Second,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Handle is an mqtt.MessageHandler.
func (b *Bridge) Handle(topic string, payload []byte) error {
	reading, err := Decode(payload)
	if err != nil {
		b.reject(payload)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.poster.PostStatus(ctx, reading); err != nil {
		if errors.Is(err, ErrRejected) {
			b.reject(payload)
		}
		return err
	}
	b.logger.Info("reading forwarded",
		"topic", topic,
		"baes_id", reading.DeviceID,
		"erreur", reading.ErrorCode,
	)
	return nil
}

func (b *Bridge) reject(payload []byte) {
	if b.publisher == nil {
		return
	}
	topic := mqtt.Topics{}.Rejected(b.clientID)
	if err := b.publisher.Publish(topic, payload, 1, false); err != nil {
		b.logger.Warn("republishing rejected frame failed", "topic", topic, "error", err)
	}
}
