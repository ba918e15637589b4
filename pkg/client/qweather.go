package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
	"go.uber.org/zap"
)

const qweatherTimeLayout = "2006-01-02T15:04-07:00"

// QWeatherClient authenticates with the X-QW-Api-Key header so the key never
// appears in request URLs or the errors that carry them.
type QWeatherClient struct {
	*BaseClient
	baseURL string
}

type QWeatherNowResponse struct {
	Code       string `json:"code"`
	UpdateTime string `json:"updateTime"`
	Now        struct {
		ObsTime   string `json:"obsTime"`
		Temp      string `json:"temp"`
		FeelsLike string `json:"feelsLike"`
		Icon      string `json:"icon"`
		Text      string `json:"text"`
		Wind360   string `json:"wind360"`
		WindDir   string `json:"windDir"`
		WindScale string `json:"windScale"`
		WindSpeed string `json:"windSpeed"`
		Humidity  string `json:"humidity"`
		Precip    string `json:"precip"`
		Pressure  string `json:"pressure"`
		Vis       string `json:"vis"`
		Cloud     string `json:"cloud"`
		Dew       string `json:"dew"`
	} `json:"now"`
}

func NewQWeatherClient(apiKey, baseURL string, config ClientConfig, logger *zap.Logger) *QWeatherClient {
	config.Headers = withHeader(config.Headers, "X-QW-Api-Key", apiKey)
	return &QWeatherClient{
		BaseClient: NewBaseClient("qweather", config, logger),
		baseURL:    baseURL,
	}
}

// Now returns the current conditions for loc.
func (c *QWeatherClient) Now(ctx context.Context, loc models.Location) (*models.Observation, error) {
	query := url.Values{}
	query.Set("location", loc.ID)
	endpoint := fmt.Sprintf("%s/v7/weather/now?%s", c.baseURL, query.Encode())

	var response QWeatherNowResponse
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch current weather for %s: %w", loc.Name, err)
	}

	if response.Code != "200" {
		return nil, fmt.Errorf("%w: qweather code %s for %s", ErrAPI, response.Code, loc.Name)
	}

	observedAt, err := time.Parse(qweatherTimeLayout, response.Now.ObsTime)
	if err != nil {
		c.logger.Debug("Unparseable observation time",
			zap.String("city", loc.Name),
			zap.String("obs_time", response.Now.ObsTime))
	}

	now := response.Now
	return &models.Observation{
		Location:   loc.Name,
		ObservedAt: observedAt,
		Temp:       now.Temp,
		FeelsLike:  now.FeelsLike,
		Text:       now.Text,
		WindDir:    now.WindDir,
		WindScale:  now.WindScale,
		WindSpeed:  now.WindSpeed,
		Wind360:    now.Wind360,
		Humidity:   now.Humidity,
		Precip:     now.Precip,
		Pressure:   now.Pressure,
		Vis:        now.Vis,
		Dew:        now.Dew,
		Cloud:      now.Cloud,
	}, nil
}
