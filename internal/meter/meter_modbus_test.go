package meter

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	tmodbus "transformer-losses/internal/modbus"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registerBank serves a fixed register block over Modbus TCP.
type registerBank struct {
	mu    sync.Mutex
	regs  []uint16
	reads int
}

func (b *registerBank) HandleCoils(*modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (b *registerBank) HandleDiscreteInputs(*modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (b *registerBank) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		return nil, modbus.ErrIllegalFunction
	}
	return b.read(req.Addr, req.Quantity)
}

func (b *registerBank) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return b.read(req.Addr, req.Quantity)
}

func (b *registerBank) read(addr, quantity uint16) ([]uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(addr)+int(quantity) > len(b.regs) {
		return nil, modbus.ErrIllegalDataAddress
	}
	b.reads++
	out := make([]uint16, quantity)
	copy(out, b.regs[addr:int(addr)+int(quantity)])
	return out, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func startBank(t *testing.T, bank *registerBank) int {
	t.Helper()
	port := freePort(t)
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        fmt.Sprintf("tcp://127.0.0.1:%d", port),
		Timeout:    5 * time.Second,
		MaxClients: 2,
	}, bank)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Stop() })
	return port
}

func TestMeter_ReadAllDataOverTCP(t *testing.T) {
	bank := &registerBank{regs: []uint16{2300, 1150, 5000, 21739, 50000, 0, 812, StatusNormal}}
	port := startBank(t, bank)

	for _, kind := range []tmodbus.RegisterKind{tmodbus.InputRegisters, tmodbus.HoldingRegisters} {
		t.Run(string(kind), func(t *testing.T) {
			m := NewMeter(tmodbus.NewClient("127.0.0.1", port, 1, 2*time.Second, kind))
			defer m.Close()

			require.NoError(t, m.TestConnection())

			r, err := m.ReadAllData()
			require.NoError(t, err)
			assert.InDelta(t, 230.0, r.PrimaryVoltage, 1e-9)
			assert.Equal(t, uint32(50000), r.ActivePower)
			assert.InDelta(t, 81.2, r.WindingTemp, 1e-9)
			assert.Equal(t, "Normal", r.StatusString)
		})
	}
}

func TestMeter_ReadWithoutConnect(t *testing.T) {
	m := NewMeter(tmodbus.NewClient("127.0.0.1", freePort(t), 1, time.Second, tmodbus.InputRegisters))

	r, err := m.ReadAllData()
	require.Error(t, err)
	require.NotNil(t, r)
	assert.False(t, r.IsOnline)
}

func TestMeter_ShortBank(t *testing.T) {
	port := startBank(t, &registerBank{regs: []uint16{2300, 1150}})
	m := NewMeter(tmodbus.NewClient("127.0.0.1", port, 1, 2*time.Second, tmodbus.InputRegisters))
	defer m.Close()

	require.NoError(t, m.Connect())
	_, err := m.ReadAllData()
	assert.Error(t, err)
}
