package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	openMeteoBaseURL    = "https://api.open-meteo.com"
	openMeteoGeocodeURL = "https://geocoding-api.open-meteo.com"
)

type OpenMeteoClient struct {
	city       string
	country    string
	latitude   float64
	longitude  float64
	baseURL    string
	geocodeURL string
	client     *http.Client
}

func NewOpenMeteoClient(city, country string, latitude, longitude float64) *OpenMeteoClient {
	return &OpenMeteoClient{
		city:       city,
		country:    country,
		latitude:   latitude,
		longitude:  longitude,
		baseURL:    openMeteoBaseURL,
		geocodeURL: openMeteoGeocodeURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type openMeteoResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Time          string  `json:"time"`
		Temperature2m float64 `json:"temperature_2m"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
}

type openMeteoGeoResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

func (c *OpenMeteoClient) Get(ctx context.Context) (*Data, error) {
	lat, lon, err := c.resolveLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%.6f", lat))
	query.Set("longitude", fmt.Sprintf("%.6f", lon))
	query.Set("current", "temperature_2m,weather_code")
	query.Set("temperature_unit", "celsius")
	query.Set("timezone", "auto")

	var payload openMeteoResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/forecast?"+query.Encode(), &payload); err != nil {
		return nil, err
	}

	if strings.TrimSpace(payload.Current.Time) == "" {
		return nil, fmt.Errorf("open-meteo current data missing")
	}

	condition, description := openMeteoDescribe(payload.Current.WeatherCode)

	return &Data{
		Provider:    "openmeteo",
		Temperature: payload.Current.Temperature2m,
		Condition:   condition,
		Description: description,
		ObservedAt:  parseOpenMeteoTime(payload.Current.Time, payload.Timezone),
	}, nil
}

func (c *OpenMeteoClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("open-meteo request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("open-meteo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("open-meteo bad status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("open-meteo decode: %w", err)
	}
	return nil
}

func (c *OpenMeteoClient) resolveLocation(ctx context.Context) (float64, float64, error) {
	if c.latitude != 0 || c.longitude != 0 {
		return c.latitude, c.longitude, nil
	}

	if strings.TrimSpace(c.city) == "" {
		return 0, 0, fmt.Errorf("open-meteo location is empty")
	}

	query := url.Values{}
	query.Set("name", c.city)
	query.Set("count", "1")
	query.Set("format", "json")
	if strings.TrimSpace(c.country) != "" {
		query.Set("country", c.country)
	}

	var payload openMeteoGeoResponse
	if err := c.getJSON(ctx, c.geocodeURL+"/v1/search?"+query.Encode(), &payload); err != nil {
		return 0, 0, fmt.Errorf("geocoding: %w", err)
	}

	if len(payload.Results) == 0 {
		return 0, 0, fmt.Errorf("open-meteo geocoding found no results")
	}

	c.latitude = payload.Results[0].Latitude
	c.longitude = payload.Results[0].Longitude

	return c.latitude, c.longitude, nil
}

func parseOpenMeteoTime(value, timezone string) time.Time {
	loc := time.UTC
	if strings.TrimSpace(timezone) != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc = parsed
		}
	}

	if t, err := time.ParseInLocation("2006-01-02T15:04", value, loc); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(time.RFC3339, value, loc); err == nil {
		return t
	}
	return time.Time{}
}

func openMeteoDescribe(code int) (string, string) {
	switch code {
	case 0:
		return "Clear", "clear sky"
	case 1, 2:
		return "Clouds", "partly cloudy"
	case 3:
		return "Clouds", "overcast"
	case 45, 48:
		return "Fog", "fog"
	case 51, 53, 55, 56, 57:
		return "Drizzle", "drizzle"
	case 61, 63, 65, 66, 67, 80, 81, 82:
		return "Rain", "rain"
	case 71, 73, 75, 77, 85, 86:
		return "Snow", "snow"
	case 95, 96, 99:
		return "Thunderstorm", "thunderstorm"
	default:
		return "Unknown", "unknown conditions"
	}
}
