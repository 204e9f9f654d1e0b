package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"transformer-losses/internal/losses"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	Device  string
	Acks    int
}

// Event is the message body written for every evaluated operating point.
type Event struct {
	Device    string        `json:"device"`
	Timestamp time.Time     `json:"timestamp"`
	Report    losses.Report `json:"report"`
}

type Publisher struct {
	writer  messageWriter
	device  string
	enabled bool
	now     func() time.Time
}

var errNilWriter = errors.New("kafka publisher requires a writer")

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
		AllowAutoTopicCreation: true,
		Balancer:               &kafka.Hash{},
	}
	return newPublisherWithWriter(cfg, w)
}

func newPublisherWithWriter(cfg PublisherConfig, w messageWriter) (*Publisher, error) {
	if w == nil {
		return nil, errNilWriter
	}
	device := cfg.Device
	if device == "" {
		device = "transformer"
	}
	return &Publisher{
		writer:  w,
		device:  device,
		enabled: cfg.Enabled,
		now:     time.Now,
	}, nil
}

func (p *Publisher) Name() string {
	return "kafka"
}

// Publish writes r as one JSON message keyed by device name.
func (p *Publisher) Publish(ctx context.Context, r losses.Report) error {
	if !p.enabled {
		return nil
	}

	value, err := json.Marshal(Event{Device: p.device, Timestamp: p.now(), Report: r})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(p.device), Value: value}); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
