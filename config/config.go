package config

import (
	"strings"
	"time"

	"transformer-losses/internal/losses"

	"github.com/spf13/viper"
)

type Config struct {
	Transformer TransformerConfig `mapstructure:"transformer"`
	Meter       MeterConfig       `mapstructure:"meter"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	API         APIConfig         `mapstructure:"api"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Weather     WeatherConfig     `mapstructure:"weather"`
}

// TransformerConfig is the nameplate plus the defaults for values a caller
// or the meter leaves out.
type TransformerConfig struct {
	Name              string  `mapstructure:"name"`
	PrimaryVoltage    float64 `mapstructure:"primary_voltage"`
	SecondaryVoltage  float64 `mapstructure:"secondary_voltage"`
	Frequency         float64 `mapstructure:"frequency"`
	RatedPower        float64 `mapstructure:"rated_power"`
	CoreMaterial      string  `mapstructure:"core_material"`
	WindingResistance float64 `mapstructure:"winding_resistance"`
	LoadPercent       float64 `mapstructure:"load_percent"`
	Temperature       float64 `mapstructure:"temperature"`
	TemperatureSource string  `mapstructure:"temperature_source"`
	TemperatureRise   float64 `mapstructure:"temperature_rise"`
}

func (t TransformerConfig) Parameters() losses.OperatingParameters {
	return losses.OperatingParameters{
		PrimaryVoltage:    t.PrimaryVoltage,
		SecondaryVoltage:  t.SecondaryVoltage,
		Frequency:         t.Frequency,
		RatedPower:        t.RatedPower,
		CoreMaterial:      losses.CoreMaterial(t.CoreMaterial),
		WindingResistance: t.WindingResistance,
		LoadPercent:       t.LoadPercent,
		Temperature:       t.Temperature,
	}
}

func (t *TransformerConfig) SetParameters(p losses.OperatingParameters) {
	t.PrimaryVoltage = p.PrimaryVoltage
	t.SecondaryVoltage = p.SecondaryVoltage
	t.Frequency = p.Frequency
	t.RatedPower = p.RatedPower
	t.CoreMaterial = string(p.CoreMaterial)
	t.WindingResistance = p.WindingResistance
	t.LoadPercent = p.LoadPercent
	t.Temperature = p.Temperature
}

type MeterConfig struct {
	IP           string        `mapstructure:"ip"`
	Port         int           `mapstructure:"port"`
	SlaveID      uint8         `mapstructure:"slave_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RegisterKind string        `mapstructure:"register_kind"`
}

type CollectorConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Enabled   bool          `mapstructure:"enabled"`
	Retention time.Duration `mapstructure:"retention"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Acks    int      `mapstructure:"acks"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type WeatherConfig struct {
	Provider  string  `mapstructure:"provider"`
	APIKey    string  `mapstructure:"api_key"`
	City      string  `mapstructure:"city"`
	Country   string  `mapstructure:"country"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

const envPrefix = "TRANSFORMER_LOSSES"

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/transformer-losses")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	d := losses.DefaultParameters()

	viper.SetDefault("transformer.name", "transformer")
	viper.SetDefault("transformer.primary_voltage", d.PrimaryVoltage)
	viper.SetDefault("transformer.secondary_voltage", d.SecondaryVoltage)
	viper.SetDefault("transformer.frequency", d.Frequency)
	viper.SetDefault("transformer.rated_power", d.RatedPower)
	viper.SetDefault("transformer.core_material", string(d.CoreMaterial))
	viper.SetDefault("transformer.winding_resistance", d.WindingResistance)
	viper.SetDefault("transformer.load_percent", d.LoadPercent)
	viper.SetDefault("transformer.temperature", d.Temperature)
	viper.SetDefault("transformer.temperature_source", "meter")
	viper.SetDefault("transformer.temperature_rise", 40)
	viper.SetDefault("meter.ip", "127.0.0.1")
	viper.SetDefault("meter.port", 502)
	viper.SetDefault("meter.slave_id", 1)
	viper.SetDefault("meter.timeout", "10s")
	viper.SetDefault("meter.register_kind", "input")
	viper.SetDefault("collector.interval", "30s")
	viper.SetDefault("collector.enabled", false)
	viper.SetDefault("collector.retention", "720h")
	viper.SetDefault("api.port", 8046)
	viper.SetDefault("api.enabled", true)
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic_prefix", "transformer-losses")
	viper.SetDefault("mqtt.client_id", "transformer-losses")
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "transformer.losses")
	viper.SetDefault("kafka.acks", 1)
	viper.SetDefault("database.path", "./transformer-losses.db")
	viper.SetDefault("weather.provider", "openmeteo")
	viper.SetDefault("weather.api_key", "")
	viper.SetDefault("weather.city", "")
	viper.SetDefault("weather.country", "")
	viper.SetDefault("weather.latitude", 0)
	viper.SetDefault("weather.longitude", 0)
}

// SaveTransformer writes the transformer section back to the config file.
func SaveTransformer(configPath string, t TransformerConfig) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	viper.SetConfigFile(configPath)

	viper.Set("transformer.name", t.Name)
	viper.Set("transformer.primary_voltage", t.PrimaryVoltage)
	viper.Set("transformer.secondary_voltage", t.SecondaryVoltage)
	viper.Set("transformer.frequency", t.Frequency)
	viper.Set("transformer.rated_power", t.RatedPower)
	viper.Set("transformer.core_material", t.CoreMaterial)
	viper.Set("transformer.winding_resistance", t.WindingResistance)
	viper.Set("transformer.load_percent", t.LoadPercent)
	viper.Set("transformer.temperature", t.Temperature)
	viper.Set("transformer.temperature_source", t.TemperatureSource)
	viper.Set("transformer.temperature_rise", t.TemperatureRise)

	return viper.WriteConfig()
}
