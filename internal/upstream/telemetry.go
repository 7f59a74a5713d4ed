package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CurrentTemperature returns the indoor temperature reported for a device.
func (c *Client) CurrentTemperature(ctx context.Context, deviceID, zoneID string) (float64, error) {
	var resp struct {
		Temperature *float64 `json:"temperature"`
	}
	query := url.Values{"device_id": {deviceID}, "zone_id": {zoneID}}
	if err := c.getJSON(ctx, "temperature_current", "/temperature/current", query, &resp); err != nil {
		return 0, err
	}
	if resp.Temperature == nil {
		return 0, fmt.Errorf("%w: temperature_current: missing temperature", ErrMalformedResponse)
	}
	return *resp.Temperature, nil
}

// TemperatureHistory returns the recorded temperature for a device between start and end.
func (c *Client) TemperatureHistory(ctx context.Context, deviceID, zoneID string, start, end time.Time) ([]HistoryPoint, error) {
	var resp struct {
		History *[]HistoryPoint `json:"history"`
	}
	query := url.Values{
		"device_id":  {deviceID},
		"zone_id":    {zoneID},
		"start_time": {formatTime(start)},
		"end_time":   {formatTime(end)},
	}
	if err := c.getJSON(ctx, "temperature_history", "/temperature/history", query, &resp); err != nil {
		return nil, err
	}
	if resp.History == nil {
		return nil, fmt.Errorf("%w: temperature_history: missing history", ErrMalformedResponse)
	}
	return *resp.History, nil
}

// StatusMetrics returns the metrics summary for a system.
func (c *Client) StatusMetrics(ctx context.Context, systemID string) (SystemMetrics, error) {
	var resp struct {
		Status string `json:"status"`
		Data   *struct {
			Summary map[string]json.RawMessage `json:"summary"`
		} `json:"data"`
	}
	query := url.Values{"system_id": {systemID}}
	if err := c.getJSON(ctx, "status_metrics", "/status/metrics", query, &resp); err != nil {
		return SystemMetrics{}, err
	}
	if strings.EqualFold(resp.Status, "error") {
		return SystemMetrics{}, fmt.Errorf("%w: status_metrics: status %q", ErrRejected, resp.Status)
	}
	if resp.Data == nil || resp.Data.Summary == nil {
		return SystemMetrics{}, fmt.Errorf("%w: status_metrics: missing data.summary", ErrMalformedResponse)
	}

	summary := make(map[string]float64, len(resp.Data.Summary))
	for key, raw := range resp.Data.Summary {
		var v float64
		if json.Unmarshal(raw, &v) == nil {
			summary[key] = v
		}
	}
	return SystemMetrics{Status: resp.Status, Summary: summary}, nil
}
