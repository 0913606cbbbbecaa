// Package client is a thin HTTP client for the prediction server.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"exoplanet-classifier/internal/ml"
	"exoplanet-classifier/internal/observation"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("server: %d %s (field %s)", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("server: %d %s", e.StatusCode, e.Message)
}

// IsMalformedInput reports whether err is a 400 naming an input field.
func IsMalformedInput(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 400 && apiErr.Field != ""
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict sends one observation. requestID may be empty.
func (c *Client) Predict(ctx context.Context, obs observation.Observation, requestID string) (*ml.PredictionResponse, error) {
	features := make(map[string]any, len(observation.Specs()))
	for k, v := range obs.ToMap() {
		features[k] = v
	}
	return c.PredictRaw(ctx, features, requestID)
}

// PredictRaw sends an arbitrary feature mapping, letting the server do all
// validation.
func (c *Client) PredictRaw(ctx context.Context, features map[string]any, requestID string) (*ml.PredictionResponse, error) {
	out := &ml.PredictionResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(ml.PredictionRequest{Features: features, RequestID: requestID}).
		SetResult(out).
		SetError(&ml.ErrorResponse{}).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (*ml.HealthResponse, error) {
	out := &ml.HealthResponse{}
	if err := c.get(ctx, "/health", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ModelInfo(ctx context.Context) (*ml.ModelInfo, error) {
	out := &ml.ModelInfo{}
	if err := c.get(ctx, "/model/info", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Features fetches the input descriptions the server accepts.
func (c *Client) Features(ctx context.Context) ([]observation.FeatureSpec, error) {
	var out []observation.FeatureSpec
	if err := c.get(ctx, "/features", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&ml.ErrorResponse{}).
		Get(c.base + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return apiError(resp)
}

func apiError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	if body, ok := resp.Error().(*ml.ErrorResponse); ok && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Field = body.Field
	}
	return apiErr
}
