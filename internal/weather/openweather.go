package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const openWeatherBaseURL = "https://api.openweathermap.org"

type OpenWeatherClient struct {
	apiKey    string
	city      string
	country   string
	latitude  float64
	longitude float64
	baseURL   string
	client    *http.Client
}

func NewOpenWeatherClient(apiKey, city, country string, latitude, longitude float64) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:    apiKey,
		city:      city,
		country:   country,
		latitude:  latitude,
		longitude: longitude,
		baseURL:   openWeatherBaseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type openWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Dt int64 `json:"dt"`
}

func (c *OpenWeatherClient) Get(ctx context.Context) (*Data, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is empty")
	}

	query := url.Values{}
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	if c.latitude != 0 || c.longitude != 0 {
		query.Set("lat", fmt.Sprintf("%.6f", c.latitude))
		query.Set("lon", fmt.Sprintf("%.6f", c.longitude))
	} else if c.city != "" {
		if c.country != "" {
			query.Set("q", fmt.Sprintf("%s,%s", c.city, c.country))
		} else {
			query.Set("q", c.city)
		}
	} else {
		return nil, fmt.Errorf("openweather location is empty")
	}

	endpoint := c.baseURL + "/data/2.5/weather?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("openweather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openweather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openweather bad status: %s", resp.Status)
	}

	var payload openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("openweather decode: %w", err)
	}

	condition := ""
	description := ""
	if len(payload.Weather) > 0 {
		condition = payload.Weather[0].Main
		description = payload.Weather[0].Description
	}

	return &Data{
		Provider:    "openweather",
		Temperature: payload.Main.Temp,
		Condition:   condition,
		Description: description,
		ObservedAt:  time.Unix(payload.Dt, 0).UTC(),
	}, nil
}
