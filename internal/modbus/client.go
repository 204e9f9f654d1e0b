package modbus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
)

// RegisterKind selects which Modbus table the meter exposes its values in.
type RegisterKind string

const (
	InputRegisters   RegisterKind = "input"
	HoldingRegisters RegisterKind = "holding"
)

func ParseRegisterKind(s string) (RegisterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "input":
		return InputRegisters, nil
	case "holding":
		return HoldingRegisters, nil
	}
	return "", fmt.Errorf("unknown register kind %q", s)
}

type Client struct {
	client  *modbus.ModbusClient
	mu      sync.Mutex
	ip      string
	port    int
	slaveID uint8
	timeout time.Duration
	kind    RegisterKind
}

func NewClient(ip string, port int, slaveID uint8, timeout time.Duration, kind RegisterKind) *Client {
	if kind == "" {
		kind = InputRegisters
	}
	return &Client{
		ip:      ip,
		port:    port,
		slaveID: slaveID,
		timeout: timeout,
		kind:    kind,
	}
}

func (c *Client) Address() string {
	return fmt.Sprintf("%s:%d", c.ip, c.port)
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s", c.Address()),
		Timeout: c.timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create modbus client: %w", err)
	}

	if err := client.Open(); err != nil {
		return fmt.Errorf("failed to connect to meter: %w", err)
	}

	client.SetUnitId(c.slaveID)
	c.client = client

	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// ReadRegisters reads quantity consecutive registers from the configured table.
func (c *Client) ReadRegisters(address uint16, quantity uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil, fmt.Errorf("client not connected")
	}

	regType := modbus.INPUT_REGISTER
	if c.kind == HoldingRegisters {
		regType = modbus.HOLDING_REGISTER
	}

	regs, err := c.client.ReadRegisters(address, quantity, regType)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s registers at %d: %w", c.kind, address, err)
	}

	return regs, nil
}

func (c *Client) Reconnect() error {
	c.Close()
	return c.Connect()
}
