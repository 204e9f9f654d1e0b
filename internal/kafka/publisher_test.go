package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"transformer-losses/internal/losses"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p, err := newPublisherWithWriter(PublisherConfig{Enabled: true, Device: "tx-7"}, w)
	require.NoError(t, err)
	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	p.now = func() time.Time { return at }

	r := losses.Analyze(losses.DefaultParameters())
	require.NoError(t, p.Publish(context.Background(), r))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "tx-7", string(w.msgs[0].Key))

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "tx-7", ev.Device)
	assert.True(t, at.Equal(ev.Timestamp))
	assert.Equal(t, r.Breakdown.TotalLoss, ev.Report.Breakdown.TotalLoss)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p, err := newPublisherWithWriter(PublisherConfig{Enabled: true}, w)
	require.NoError(t, err)

	err = p.Publish(context.Background(), losses.Analyze(losses.DefaultParameters()))
	assert.ErrorContains(t, err, "broker down")
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), losses.Report{}))
	assert.NoError(t, p.Close())

	_, err = NewPublisher(PublisherConfig{Enabled: true, Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	_, err = NewPublisher(PublisherConfig{Enabled: true, Topic: "losses"})
	assert.Error(t, err)

	_, err = newPublisherWithWriter(PublisherConfig{Enabled: true}, nil)
	assert.ErrorIs(t, err, errNilWriter)
}
