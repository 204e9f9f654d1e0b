package weather

import (
	"fmt"
	"strings"
)

type Options struct {
	Provider  string
	APIKey    string
	City      string
	Country   string
	Latitude  float64
	Longitude float64
}

// New builds the provider named in opts.
func New(opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "openweather":
		return NewOpenWeatherClient(opts.APIKey, opts.City, opts.Country, opts.Latitude, opts.Longitude), nil
	case "", "openmeteo", "open-meteo", "open_meteo":
		return NewOpenMeteoClient(opts.City, opts.Country, opts.Latitude, opts.Longitude), nil
	}
	return nil, fmt.Errorf("weather provider not supported: %s", opts.Provider)
}
