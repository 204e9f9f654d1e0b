package collector

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"transformer-losses/internal/losses"
	"transformer-losses/internal/meter"
	"transformer-losses/internal/storage"
	"transformer-losses/internal/weather"
)

// Source yields live operating points.
type Source interface {
	Connect() error
	Reconnect() error
	Close() error
	ReadAllData() (*meter.Reading, error)
}

type Store interface {
	SaveRecord(r losses.Report, source string) (*storage.LossRecord, error)
	Close() error
}

// Sink receives every evaluated report.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r losses.Report) error
	Close() error
}

// TemperatureSource selects where the operating temperature comes from.
type TemperatureSource string

const (
	TemperatureFixed   TemperatureSource = "fixed"
	TemperatureMeter   TemperatureSource = "meter"
	TemperatureWeather TemperatureSource = "weather"
)

func ParseTemperatureSource(s string) (TemperatureSource, error) {
	switch ts := TemperatureSource(strings.ToLower(strings.TrimSpace(s))); ts {
	case "":
		return TemperatureMeter, nil
	case TemperatureFixed, TemperatureMeter, TemperatureWeather:
		return ts, nil
	}
	return "", fmt.Errorf("unknown temperature source %q", s)
}

// Snapshot is the most recent evaluation.
type Snapshot struct {
	Reading *meter.Reading `json:"reading"`
	Ambient *weather.Data  `json:"ambient,omitempty"`
	Report  losses.Report  `json:"report"`
}

type Collector struct {
	source   Source
	db       Store
	sinks    []Sink
	weather  weather.Provider
	interval time.Duration
	enabled  bool

	tempSource TemperatureSource
	tempRise   float64

	mu           sync.RWMutex
	nameplate    losses.OperatingParameters
	latest       *Snapshot
	ambient      *weather.Data
	isCollecting bool
}

type CollectorConfig struct {
	Source            Source
	Database          Store
	Sinks             []Sink
	Weather           weather.Provider
	Nameplate         losses.OperatingParameters
	TemperatureSource TemperatureSource
	TemperatureRise   float64
	Interval          time.Duration
	Enabled           bool
}

func NewCollector(cfg CollectorConfig) *Collector {
	tempSource := cfg.TemperatureSource
	if tempSource == "" {
		tempSource = TemperatureMeter
	}
	return &Collector{
		source:     cfg.Source,
		db:         cfg.Database,
		sinks:      cfg.Sinks,
		weather:    cfg.Weather,
		nameplate:  cfg.Nameplate,
		tempSource: tempSource,
		tempRise:   cfg.TemperatureRise,
		interval:   cfg.Interval,
		enabled:    cfg.Enabled,
	}
}

func (c *Collector) Start(ctx context.Context) error {
	if !c.enabled {
		log.Println("Collector is disabled")
		return nil
	}
	if c.interval <= 0 {
		return fmt.Errorf("collector interval must be positive, got %s", c.interval)
	}

	c.mu.Lock()
	c.isCollecting = true
	c.mu.Unlock()

	log.Printf("Starting collector with interval %s", c.interval)

	c.collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Collector stopped")
			c.mu.Lock()
			c.isCollecting = false
			c.mu.Unlock()
			return nil
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *Collector) collect(ctx context.Context) {
	snap, err := c.CollectOnce(ctx)
	if err != nil {
		log.Printf("Error collecting operating point: %v", err)
		return
	}

	if c.db != nil {
		if _, err := c.db.SaveRecord(snap.Report, storage.SourceMeter); err != nil {
			log.Printf("Error saving record: %v", err)
		}
	}

	for _, sink := range c.sinks {
		if err := sink.Publish(ctx, snap.Report); err != nil {
			log.Printf("Error publishing to %s: %v", sink.Name(), err)
		}
	}

	b := snap.Report.Breakdown
	log.Printf("Collected: Load=%.1f%%, Losses=%.1fW, Efficiency=%.2f%%, Temp=%.1f°C",
		snap.Report.Parameters.LoadPercent, b.TotalLoss, b.OverallEfficiency, snap.Report.Parameters.Temperature)
}

// CollectOnce reads the meter, evaluates the loss model and records the
// result as the latest snapshot. Nothing is persisted or published.
func (c *Collector) CollectOnce(ctx context.Context) (*Snapshot, error) {
	if c.source == nil {
		return nil, fmt.Errorf("collector not initialized (source is nil)")
	}

	reading, err := c.read()
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	params := reading.Apply(c.nameplate)
	nameplateTemp := c.nameplate.Temperature
	tempSource, tempRise, provider := c.tempSource, c.tempRise, c.weather
	c.mu.RUnlock()

	var ambient *weather.Data
	switch tempSource {
	case TemperatureFixed:
		params.Temperature = nameplateTemp
	case TemperatureWeather:
		ambient = c.fetchAmbient(ctx, provider)
		if ambient != nil {
			params.Temperature = ambient.OperatingTemperature(tempRise)
		} else {
			params.Temperature = nameplateTemp
		}
	}

	snap := &Snapshot{
		Reading: reading,
		Ambient: ambient,
		Report:  losses.Analyze(params),
	}

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()

	return snap, nil
}

func (c *Collector) read() (*meter.Reading, error) {
	if err := c.source.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to meter: %w", err)
	}

	reading, err := c.source.ReadAllData()
	if err == nil {
		return reading, nil
	}

	log.Printf("Error reading meter data: %v", err)
	if reconnErr := c.source.Reconnect(); reconnErr != nil {
		return nil, fmt.Errorf("failed to reconnect: %w", reconnErr)
	}
	reading, err = c.source.ReadAllData()
	if err != nil {
		return nil, fmt.Errorf("reading meter data after reconnect: %w", err)
	}
	return reading, nil
}

// fetchAmbient returns fresh weather data, or the last good value when the
// provider fails.
func (c *Collector) fetchAmbient(ctx context.Context, provider weather.Provider) *weather.Data {
	if provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	data, err := provider.Get(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		log.Printf("Weather fetch failed: %v", err)
		return c.ambient
	}
	c.ambient = data
	return data
}

func (c *Collector) GetLatest() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *Collector) IsCollecting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isCollecting
}

func (c *Collector) Nameplate() losses.OperatingParameters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nameplate
}

// UpdateNameplate replaces the configured transformer data used for the
// values the meter does not measure.
func (c *Collector) UpdateNameplate(p losses.OperatingParameters) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Printf("Updating nameplate: %.0f kVA, %s core, %.2f ohm", p.RatedPower, p.CoreMaterial, p.WindingResistance)
	c.nameplate = p
}

// TemperatureSetting reports where the operating temperature currently
// comes from and the rise added to ambient.
func (c *Collector) TemperatureSetting() (TemperatureSource, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tempSource, c.tempRise
}

// UpdateTemperatureSource switches the temperature source for the next
// evaluation. A non-nil provider replaces the weather provider. Selecting
// weather without any provider is rejected and nothing changes.
func (c *Collector) UpdateTemperatureSource(src TemperatureSource, rise float64, provider weather.Provider) error {
	src, err := ParseTemperatureSource(string(src))
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if src == TemperatureWeather && provider == nil && c.weather == nil {
		return fmt.Errorf("temperature source %q needs a weather provider", src)
	}
	if provider != nil {
		c.weather = provider
		c.ambient = nil
	}

	log.Printf("Updating temperature source: %s (rise %.1f°C)", src, rise)
	c.tempSource = src
	c.tempRise = rise
	return nil
}

func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != nil {
		c.source.Close()
	}
	for _, sink := range c.sinks {
		if err := sink.Close(); err != nil {
			log.Printf("Error closing %s: %v", sink.Name(), err)
		}
	}
	if c.db != nil {
		c.db.Close()
	}
}
