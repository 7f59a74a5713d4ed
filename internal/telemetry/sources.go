package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/upstream"
)

// Source IDs.
const (
	SourceIndoorTemperature = "indoor_temperature"
	SourceSystemMetrics     = "system_metrics"
	SourceOutdoorWeather    = "outdoor_weather"
)

// DefaultOutdoorInterval is the natural cadence of the weather source.
const DefaultOutdoorInterval = 30 * time.Minute

// TemperatureReader reads the current indoor temperature.
type TemperatureReader interface {
	CurrentTemperature(ctx context.Context, deviceID, zoneID string) (float64, error)
}

// MetricsReader reads the system metrics summary.
type MetricsReader interface {
	StatusMetrics(ctx context.Context, systemID string) (upstream.SystemMetrics, error)
}

// WeatherReader reads current outdoor weather.
type WeatherReader interface {
	Current(ctx context.Context, lat, lon float64) (upstream.Weather, error)
}

// IndoorTemperature polls the unit's zone temperature.
type IndoorTemperature struct {
	reader TemperatureReader
	now    func() time.Time
}

// NewIndoorTemperature creates the indoor temperature source.
func NewIndoorTemperature(reader TemperatureReader) *IndoorTemperature {
	return &IndoorTemperature{reader: reader, now: time.Now}
}

// ID implements Source.
func (s *IndoorTemperature) ID() string { return SourceIndoorTemperature }

// Fetch implements Source.
func (s *IndoorTemperature) Fetch(ctx context.Context, unit device.DeviceUnit) (device.TelemetrySample, error) {
	temp, err := s.reader.CurrentTemperature(ctx, unit.ID, unit.ZoneID)
	if err != nil {
		return device.TelemetrySample{}, err
	}
	return device.TelemetrySample{
		SourceID:   SourceIndoorTemperature,
		DeviceID:   unit.ID,
		ObservedAt: s.now(),
		Fields:     map[string]float64{device.FieldTemperature: temp},
	}, nil
}

// SystemMetrics polls the electrical summary of the unit's system.
// Every numeric summary value becomes a field (energy_kwh, power_w, ...).
type SystemMetrics struct {
	reader MetricsReader
	now    func() time.Time
}

// NewSystemMetrics creates the system metrics source.
func NewSystemMetrics(reader MetricsReader) *SystemMetrics {
	return &SystemMetrics{reader: reader, now: time.Now}
}

// ID implements Source.
func (s *SystemMetrics) ID() string { return SourceSystemMetrics }

// Fetch implements Source.
func (s *SystemMetrics) Fetch(ctx context.Context, unit device.DeviceUnit) (device.TelemetrySample, error) {
	m, err := s.reader.StatusMetrics(ctx, unit.SystemID)
	if err != nil {
		return device.TelemetrySample{}, err
	}
	if len(m.Summary) == 0 {
		return device.TelemetrySample{}, fmt.Errorf("%w: status_metrics: empty summary", upstream.ErrMalformedResponse)
	}

	fields := make(map[string]float64, len(m.Summary))
	for k, v := range m.Summary {
		fields[k] = v
	}
	return device.TelemetrySample{
		SourceID:   SourceSystemMetrics,
		DeviceID:   unit.ID,
		ObservedAt: s.now(),
		Fields:     fields,
	}, nil
}

// OutdoorWeather polls current weather for a fixed site location. Its
// samples carry no device ID and update the registry's outdoor conditions.
type OutdoorWeather struct {
	reader   WeatherReader
	lat, lon float64
	interval time.Duration

	// One instance serves every subscription, so concurrent fetches are
	// collapsed and a recent sample is reused.
	group     singleflight.Group
	mu        sync.Mutex
	last      device.TelemetrySample
	fetchedAt time.Time
	now       func() time.Time
}

// NewOutdoorWeather creates the outdoor weather source. A non-positive
// interval means DefaultOutdoorInterval.
//
// The source is site-wide: share one instance across all subscriptions.
// A sample fetched less than half an interval ago is returned without
// calling the reader again.
func NewOutdoorWeather(reader WeatherReader, lat, lon float64, interval time.Duration) *OutdoorWeather {
	if interval <= 0 {
		interval = DefaultOutdoorInterval
	}
	return &OutdoorWeather{reader: reader, lat: lat, lon: lon, interval: interval, now: time.Now}
}

// ID implements Source.
func (s *OutdoorWeather) ID() string { return SourceOutdoorWeather }

// Interval implements IntervalSource.
func (s *OutdoorWeather) Interval() time.Duration { return s.interval }

// Fetch implements Source. The unit is ignored.
func (s *OutdoorWeather) Fetch(ctx context.Context, _ device.DeviceUnit) (device.TelemetrySample, error) {
	s.mu.Lock()
	if !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.interval/2 {
		sample := copySample(s.last)
		s.mu.Unlock()
		return sample, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("weather", func() (any, error) {
		sample, fetchErr := s.fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		s.mu.Lock()
		s.last, s.fetchedAt = sample, s.now()
		s.mu.Unlock()
		return sample, nil
	})
	if err != nil {
		return device.TelemetrySample{}, err
	}
	return copySample(v.(device.TelemetrySample)), nil //nolint:forcetypeassert // Only samples are stored
}

func (s *OutdoorWeather) fetch(ctx context.Context) (device.TelemetrySample, error) {
	w, err := s.reader.Current(ctx, s.lat, s.lon)
	if err != nil {
		return device.TelemetrySample{}, err
	}

	fields := map[string]float64{
		device.FieldTemperature:   w.Temperature,
		device.FieldHumidity:      w.Humidity,
		device.FieldWindSpeed:     w.WindSpeed,
		device.FieldPrecipitation: w.Precipitation,
	}
	if !w.Sunrise.IsZero() {
		fields[device.FieldSunrise] = float64(w.Sunrise.Unix())
	}
	if !w.Sunset.IsZero() {
		fields[device.FieldSunset] = float64(w.Sunset.Unix())
	}
	return device.TelemetrySample{
		SourceID:    SourceOutdoorWeather,
		ObservedAt:  w.ObservedAt,
		Fields:      fields,
		Description: w.Description,
	}, nil
}

// copySample gives each caller its own Fields map.
func copySample(sample device.TelemetrySample) device.TelemetrySample {
	fields := make(map[string]float64, len(sample.Fields))
	for k, v := range sample.Fields {
		fields[k] = v
	}
	sample.Fields = fields
	return sample
}
