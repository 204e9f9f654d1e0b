package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"transformer-losses/internal/losses"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	device      string
	enabled     bool
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Device      string
	Enabled     bool
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Println("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		device:      deviceOrDefault(cfg.Device),
		enabled:     true,
	}, nil
}

func deviceOrDefault(device string) string {
	if device == "" {
		return "transformer"
	}
	return device
}

// Topics maps each published field of r to its payload value.
func Topics(r losses.Report) map[string]interface{} {
	b := r.Breakdown
	return map[string]interface{}{
		"iron_loss":          b.IronLoss,
		"copper_loss":        b.CopperLoss,
		"stray_loss":         b.StrayLoss,
		"dielectric_loss":    b.DielectricLoss,
		"total_loss":         b.TotalLoss,
		"input_power":        b.InputPower,
		"load_power":         r.LoadPower,
		"overall_efficiency": b.OverallEfficiency,
		"load_percent":       r.Parameters.LoadPercent,
		"primary_voltage":    r.Parameters.PrimaryVoltage,
		"frequency":          r.Parameters.Frequency,
		"temperature":        r.Parameters.Temperature,
		"turns_ratio":        r.TurnsRatio,
	}
}

func (p *Publisher) topic(name string) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, p.device, name)
}

// Name identifies the sink in collector logs.
func (p *Publisher) Name() string {
	return "mqtt"
}

func (p *Publisher) Publish(_ context.Context, r losses.Report) error {
	if !p.enabled {
		return nil
	}

	for name, value := range Topics(r) {
		topic := p.topic(name)
		payload := fmt.Sprintf("%.2f", value)
		token := p.client.Publish(topic, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish to %s: %v", topic, token.Error())
		}
	}

	statusJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	token := p.client.Publish(p.topic("status"), 0, true, statusJSON)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish status: %w", token.Error())
	}

	return nil
}

type discoverySensor struct {
	Name        string
	ID          string
	Unit        string
	DeviceClass string
}

var discoverySensors = []discoverySensor{
	{"Iron Losses", "iron_loss", "W", "power"},
	{"Copper Losses", "copper_loss", "W", "power"},
	{"Stray Losses", "stray_loss", "W", "power"},
	{"Dielectric Losses", "dielectric_loss", "W", "power"},
	{"Total Losses", "total_loss", "W", "power"},
	{"Input Power", "input_power", "W", "power"},
	{"Load Power", "load_power", "W", "power"},
	{"Overall Efficiency", "overall_efficiency", "%", ""},
	{"Load", "load_percent", "%", ""},
	{"Primary Voltage", "primary_voltage", "V", "voltage"},
	{"Frequency", "frequency", "Hz", "frequency"},
	{"Temperature", "temperature", "°C", "temperature"},
}

// DiscoveryConfig builds the Home Assistant discovery payload of one sensor.
func (p *Publisher) DiscoveryConfig(s discoverySensor) map[string]interface{} {
	config := map[string]interface{}{
		"name":                fmt.Sprintf("Transformer %s", s.Name),
		"unique_id":           fmt.Sprintf("%s_%s", p.device, s.ID),
		"state_topic":         p.topic(s.ID),
		"unit_of_measurement": s.Unit,
		"device": map[string]interface{}{
			"identifiers":  []string{p.device},
			"name":         p.device,
			"manufacturer": "transformer-losses",
			"model":        "loss model",
		},
	}
	if s.DeviceClass != "" {
		config["device_class"] = s.DeviceClass
	}
	return config
}

func (p *Publisher) PublishHomeAssistantDiscovery() error {
	if !p.enabled {
		return nil
	}

	for _, sensor := range discoverySensors {
		discoveryTopic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", p.device, sensor.ID)

		payload, err := json.Marshal(p.DiscoveryConfig(sensor))
		if err != nil {
			return fmt.Errorf("failed to marshal discovery for %s: %w", sensor.ID, err)
		}
		token := p.client.Publish(discoveryTopic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish discovery for %s: %v", sensor.ID, token.Error())
		}
	}

	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() error {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
	return nil
}
