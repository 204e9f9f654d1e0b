package modbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegisterKind(t *testing.T) {
	for in, want := range map[string]RegisterKind{
		"":         InputRegisters,
		"input":    InputRegisters,
		" Holding": HoldingRegisters,
	} {
		got, err := ParseRegisterKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRegisterKind("coils")
	assert.Error(t, err)
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient("10.1.2.3", 1502, 3, time.Second, "")
	assert.Equal(t, "10.1.2.3:1502", c.Address())
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())

	_, err := c.ReadRegisters(0, 8)
	assert.EqualError(t, err, "client not connected")
}
