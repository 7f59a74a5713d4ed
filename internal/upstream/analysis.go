package upstream

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// CostAnalysis returns the cost summary for a system over a window.
func (c *Client) CostAnalysis(ctx context.Context, systemID string, start, end time.Time) (CostSummary, error) {
	var resp struct {
		Analysis *CostSummary `json:"analysis"`
	}
	path := "/analysis/cost/" + url.PathEscape(systemID)
	query := url.Values{"start_time": {formatTime(start)}, "end_time": {formatTime(end)}}
	if err := c.getJSON(ctx, "analysis_cost", path, query, &resp); err != nil {
		return CostSummary{}, err
	}
	if resp.Analysis == nil {
		return CostSummary{}, fmt.Errorf("%w: analysis_cost: missing analysis", ErrMalformedResponse)
	}
	return *resp.Analysis, nil
}

// DetectAnomalies submits readings for anomaly detection.
func (c *Client) DetectAnomalies(ctx context.Context, systemID string, data []HistoryPoint) ([]Anomaly, error) {
	if data == nil {
		data = []HistoryPoint{}
	}
	req := struct {
		Data []HistoryPoint `json:"data"`
	}{Data: data}

	var resp struct {
		Anomalies *[]Anomaly `json:"anomalies"`
	}
	path := "/analysis/anomaly/detect/" + url.PathEscape(systemID)
	if err := c.postJSON(ctx, "analysis_anomaly", path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Anomalies == nil {
		return nil, fmt.Errorf("%w: analysis_anomaly: missing anomalies", ErrMalformedResponse)
	}
	return *resp.Anomalies, nil
}

// Recommendations asks the optimisation endpoint for suggestions.
func (c *Client) Recommendations(ctx context.Context, systemID, query string, reqContext map[string]any) ([]string, error) {
	req := struct {
		Query   string         `json:"query"`
		Context map[string]any `json:"context"`
	}{Query: query, Context: reqContext}

	var resp struct {
		Data *struct {
			Suggestions *[]string `json:"suggestions"`
		} `json:"data"`
	}
	path := "/analysis/optimize/llm/" + url.PathEscape(systemID)
	if err := c.postJSON(ctx, "analysis_llm", path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Suggestions == nil {
		return nil, fmt.Errorf("%w: analysis_llm: missing data.suggestions", ErrMalformedResponse)
	}
	return *resp.Data.Suggestions, nil
}
