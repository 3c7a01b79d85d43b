package traveltime

import (
	"context"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/psds-microservice/installation-service/internal/metrics"
	"github.com/psds-microservice/installation-service/internal/model"
	"go.uber.org/zap"
)

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration *struct {
				Value int    `json:"value"` // seconds
				Text  string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// DistanceMatrix queries the Google Distance Matrix API.
type DistanceMatrix struct {
	httpClient *resty.Client
	url        string
	keys       KeySource
	logger     *zap.Logger
	metrics    *metrics.Collector
}

func NewDistanceMatrix(url string, timeout time.Duration, keys KeySource, logger *zap.Logger, m *metrics.Collector) *DistanceMatrix {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &DistanceMatrix{httpClient: client, url: url, keys: keys, logger: logger, metrics: m}
}

func (d *DistanceMatrix) Estimate(ctx context.Context, origin, destination string) Result {
	res := d.estimate(ctx, origin, destination)
	if res.OK() {
		d.metrics.RecordTravelLookup("ok")
	} else {
		d.metrics.RecordTravelLookup("unavailable")
		d.logger.Warn("travel time unavailable",
			zap.String("reason", string(res.Reason)),
			zap.String("destination", destination),
		)
	}
	return res
}

func (d *DistanceMatrix) estimate(ctx context.Context, origin, destination string) Result {
	if origin == "" {
		return Unavailable(ReasonNoOrigin)
	}
	key, err := d.keys.Value(ctx, model.SettingGoogleMapsAPIKey)
	if err != nil {
		d.logger.Error("read maps api key", zap.Error(err))
		return Unavailable(ReasonNotConfigured)
	}
	if key == "" || d.url == "" {
		return Unavailable(ReasonNotConfigured)
	}

	var body distanceMatrixResponse
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"origins":      origin,
			"destinations": destination,
			"key":          key,
			"mode":         "driving",
			"language":     "it",
		}).
		SetResult(&body).
		Get(d.url)
	if err != nil {
		d.logger.Warn("distance matrix request failed", zap.Error(err))
		return Unavailable(ReasonRequestFailed)
	}
	if resp.IsError() {
		d.logger.Warn("distance matrix http error", zap.Int("status_code", resp.StatusCode()))
		return Unavailable(ReasonRequestFailed)
	}
	if body.Status != "OK" {
		d.logger.Warn("distance matrix api error", zap.String("status", body.Status))
		return Unavailable(ReasonRequestFailed)
	}
	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return Unavailable(ReasonNoRoute)
	}
	el := body.Rows[0].Elements[0]
	if el.Status != "OK" || el.Duration == nil {
		return Unavailable(ReasonNoRoute)
	}
	return Available(int(math.Ceil(float64(el.Duration.Value) / 60)))
}
