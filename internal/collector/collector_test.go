package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"transformer-losses/internal/losses"
	"transformer-losses/internal/meter"
	"transformer-losses/internal/storage"
	"transformer-losses/internal/weather"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	reading    meter.Reading
	failReads  int
	reads      int
	reconnects int
	closed     bool
}

func (s *fakeSource) Connect() error { return nil }
func (s *fakeSource) Reconnect() error {
	s.reconnects++
	return nil
}
func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}
func (s *fakeSource) ReadAllData() (*meter.Reading, error) {
	s.reads++
	if s.failReads > 0 {
		s.failReads--
		return nil, errors.New("timeout")
	}
	r := s.reading
	return &r, nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []losses.Report
	sources []string
}

func (s *fakeStore) SaveRecord(r losses.Report, source string) (*storage.LossRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	s.sources = append(s.sources, source)
	return &storage.LossRecord{}, nil
}
func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeSink struct {
	mu        sync.Mutex
	published int
	err       error
}

func (s *fakeSink) Name() string { return "fake" }
func (s *fakeSink) Publish(_ context.Context, _ losses.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published++
	return s.err
}
func (s *fakeSink) Close() error { return nil }

type fakeWeather struct {
	data *weather.Data
	err  error
}

func (w *fakeWeather) Get(context.Context) (*weather.Data, error) { return w.data, w.err }

func meterReading() meter.Reading {
	return meter.Reading{
		PrimaryVoltage:   230,
		SecondaryVoltage: 115,
		Frequency:        50,
		ActivePower:      50000,
		WindingTemp:      80,
		IsOnline:         true,
	}
}

func TestCollectOnce_MeterTemperature(t *testing.T) {
	src := &fakeSource{reading: meterReading()}
	c := NewCollector(CollectorConfig{Source: src, Nameplate: losses.DefaultParameters()})

	snap, err := c.CollectOnce(context.Background())
	require.NoError(t, err)

	want := losses.DefaultParameters()
	want.Temperature = 80
	assert.Equal(t, losses.Analyze(want), snap.Report)
	assert.Same(t, snap, c.GetLatest())
}

func TestCollectOnce_FixedTemperature(t *testing.T) {
	src := &fakeSource{reading: meterReading()}
	c := NewCollector(CollectorConfig{Source: src, Nameplate: losses.DefaultParameters(), TemperatureSource: TemperatureFixed})

	snap, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75.0, snap.Report.Parameters.Temperature)
}

func TestCollectOnce_WeatherTemperature(t *testing.T) {
	w := &fakeWeather{data: &weather.Data{Temperature: 30}}
	c := NewCollector(CollectorConfig{
		Source:            &fakeSource{reading: meterReading()},
		Nameplate:         losses.DefaultParameters(),
		Weather:           w,
		TemperatureSource: TemperatureWeather,
		TemperatureRise:   45,
	})

	snap, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75.0, snap.Report.Parameters.Temperature)
	require.NotNil(t, snap.Ambient)

	// provider failure keeps the last good ambient value
	w.data, w.err = nil, errors.New("offline")
	snap, err = c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75.0, snap.Report.Parameters.Temperature)
}

func TestCollectOnce_ReconnectsOnReadError(t *testing.T) {
	src := &fakeSource{reading: meterReading(), failReads: 1}
	c := NewCollector(CollectorConfig{Source: src, Nameplate: losses.DefaultParameters()})

	_, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.reconnects)
	assert.Equal(t, 2, src.reads)

	src.failReads = 2
	_, err = c.CollectOnce(context.Background())
	assert.Error(t, err)
}

func TestCollectOnce_NilSource(t *testing.T) {
	_, err := NewCollector(CollectorConfig{}).CollectOnce(context.Background())
	assert.Error(t, err)
}

func TestStart_PersistsAndPublishes(t *testing.T) {
	store := &fakeStore{}
	good := &fakeSink{}
	bad := &fakeSink{err: errors.New("broker down")}
	src := &fakeSource{reading: meterReading()}

	c := NewCollector(CollectorConfig{
		Source:    src,
		Database:  store,
		Sinks:     []Sink{good, bad},
		Nameplate: losses.DefaultParameters(),
		Interval:  10 * time.Millisecond,
		Enabled:   true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return store.count() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.IsCollecting())
	cancel()
	require.NoError(t, <-done)
	assert.False(t, c.IsCollecting())

	assert.Equal(t, storage.SourceMeter, store.sources[0])
	good.mu.Lock()
	assert.GreaterOrEqual(t, good.published, 2)
	good.mu.Unlock()

	c.Stop()
	assert.True(t, src.closed)
}

func TestStart_Disabled(t *testing.T) {
	c := NewCollector(CollectorConfig{Enabled: false})
	assert.NoError(t, c.Start(context.Background()))
	assert.False(t, c.IsCollecting())
}

func TestUpdateNameplate(t *testing.T) {
	c := NewCollector(CollectorConfig{Source: &fakeSource{reading: meterReading()}, Nameplate: losses.DefaultParameters()})

	np := losses.DefaultParameters()
	np.RatedPower = 200
	np.CoreMaterial = losses.Ferrite
	c.UpdateNameplate(np)
	assert.Equal(t, np, c.Nameplate())

	snap, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 25.0, snap.Report.Parameters.LoadPercent, 1e-9)
	assert.Equal(t, losses.Ferrite, snap.Report.Parameters.CoreMaterial)
}

func TestParseTemperatureSource(t *testing.T) {
	ts, err := ParseTemperatureSource("")
	require.NoError(t, err)
	assert.Equal(t, TemperatureMeter, ts)

	ts, err = ParseTemperatureSource("Weather")
	require.NoError(t, err)
	assert.Equal(t, TemperatureWeather, ts)

	_, err = ParseTemperatureSource("guess")
	assert.Error(t, err)
}

func TestUpdateTemperatureSource(t *testing.T) {
	c := NewCollector(CollectorConfig{
		Source:            &fakeSource{reading: meterReading()},
		Nameplate:         losses.DefaultParameters(),
		TemperatureSource: TemperatureFixed,
	})

	snap, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75.0, snap.Report.Parameters.Temperature)

	require.NoError(t, c.UpdateTemperatureSource(TemperatureMeter, 0, nil))
	snap, err = c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80.0, snap.Report.Parameters.Temperature)

	// weather needs a provider
	err = c.UpdateTemperatureSource(TemperatureWeather, 40, nil)
	require.Error(t, err)
	src, _ := c.TemperatureSetting()
	assert.Equal(t, TemperatureMeter, src)

	w := &fakeWeather{data: &weather.Data{Temperature: 25}}
	require.NoError(t, c.UpdateTemperatureSource("Weather", 40, w))
	src, rise := c.TemperatureSetting()
	assert.Equal(t, TemperatureWeather, src)
	assert.Equal(t, 40.0, rise)

	snap, err = c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 65.0, snap.Report.Parameters.Temperature)
	require.NotNil(t, snap.Ambient)

	// the provider stays once set
	require.NoError(t, c.UpdateTemperatureSource(TemperatureWeather, 50, nil))
	snap, err = c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75.0, snap.Report.Parameters.Temperature)

	assert.Error(t, c.UpdateTemperatureSource("guess", 0, nil))
}
