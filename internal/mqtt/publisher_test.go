package mqtt

import (
	"context"
	"testing"

	"transformer-losses/internal/losses"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	r := losses.Analyze(losses.DefaultParameters())
	topics := Topics(r)

	assert.Equal(t, r.Breakdown.TotalLoss, topics["total_loss"])
	assert.Equal(t, r.LoadPower, topics["load_power"])
	assert.Equal(t, 2.0, topics["turns_ratio"])

	for _, s := range discoverySensors {
		assert.Contains(t, topics, s.ID, "discovery sensor %s has no state topic", s.ID)
	}
}

func TestDisabledPublisher(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, p.Publish(context.Background(), losses.Analyze(losses.DefaultParameters())))
	assert.NoError(t, p.PublishHomeAssistantDiscovery())
	assert.False(t, p.IsConnected())
	assert.NoError(t, p.Close())
}

func TestDiscoveryConfig(t *testing.T) {
	p := &Publisher{topicPrefix: "grid", device: deviceOrDefault("")}

	cfg := p.DiscoveryConfig(discoverySensors[0])
	assert.Equal(t, "grid/transformer/iron_loss", cfg["state_topic"])
	assert.Equal(t, "transformer_iron_loss", cfg["unique_id"])
	assert.Equal(t, "power", cfg["device_class"])

	cfg = p.DiscoveryConfig(discoverySensors[7])
	assert.NotContains(t, cfg, "device_class")
}
