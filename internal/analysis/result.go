package analysis

import (
	"time"

	"github.com/nerrad567/gray-logic-climate/internal/upstream"
)

// Source names used in Result.Sources, logs and metrics.
const (
	SourceAnomalies       = "anomalies"
	SourceCost            = "cost"
	SourceRecommendations = "recommendations"
)

// Status tags how a sub-result was obtained.
type Status string

// Sub-result statuses.
const (
	StatusSuccess Status = "success"
	StatusDefault Status = "default"
)

// Outcome is a sub-result tagged with how it was obtained.
type Outcome[T any] struct {
	Value  T
	Status Status
	Reason string
}

// Success wraps a value returned by the upstream.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Status: StatusSuccess}
}

// Default wraps a substituted value and the reason it was needed.
func Default[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Status: StatusDefault, Reason: reason}
}

// Window is the time range analysed.
type Window struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// SourceReport records how one sub-result was obtained.
type SourceReport struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Result is the merged analysis for one device. It is always complete:
// every field holds either upstream data or its default.
type Result struct {
	DeviceID        string                  `json:"device_id"`
	Window          Window                  `json:"window"`
	Anomalies       []upstream.Anomaly      `json:"anomalies"`
	CostSummary     upstream.CostSummary    `json:"cost_summary"`
	Recommendations []string                `json:"recommendations"`
	Sources         map[string]SourceReport `json:"sources"`
	TimedOut        bool                    `json:"timed_out"`
}

func defaultAnomalies(reason string) Outcome[[]upstream.Anomaly] {
	return Default([]upstream.Anomaly{}, reason)
}

func defaultCost(reason string) Outcome[upstream.CostSummary] {
	return Default(upstream.CostSummary{}, reason)
}

func defaultRecommendations(reason string) Outcome[[]string] {
	return Default([]string{}, reason)
}

// merge builds a Result from the three outcomes.
func merge(deviceID string, w Window, a Outcome[[]upstream.Anomaly], c Outcome[upstream.CostSummary], r Outcome[[]string]) Result {
	anomalies := a.Value
	if anomalies == nil {
		anomalies = []upstream.Anomaly{}
	}
	recs := r.Value
	if recs == nil {
		recs = []string{}
	}
	return Result{
		DeviceID:        deviceID,
		Window:          w,
		Anomalies:       anomalies,
		CostSummary:     c.Value,
		Recommendations: recs,
		Sources: map[string]SourceReport{
			SourceAnomalies:       {Status: a.Status, Reason: a.Reason},
			SourceCost:            {Status: c.Status, Reason: c.Reason},
			SourceRecommendations: {Status: r.Status, Reason: r.Reason},
		},
	}
}
