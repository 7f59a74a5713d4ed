package upstream

import "time"

// HistoryPoint is one entry of the temperature history endpoint.
type HistoryPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
}

// SystemMetrics is the summary returned by the status metrics endpoint.
// Only numeric summary values are kept.
type SystemMetrics struct {
	Status  string
	Summary map[string]float64
}

// CostSummary is the cost analysis for a window. All fields are zero when
// the analysis could not be obtained.
type CostSummary struct {
	TotalEnergyKWh   float64 `json:"total_energy_kwh"`
	TotalCost        float64 `json:"total_cost"`
	AverageDailyCost float64 `json:"average_daily_cost"`
	PeakUsageKWh     float64 `json:"peak_usage_kwh"`
	PeakUsageCost    float64 `json:"peak_usage_cost"`
	EfficiencyScore  float64 `json:"efficiency_score"`
}

// AnomalyMetrics are the readings attached to an anomaly record.
type AnomalyMetrics struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Power       float64 `json:"power"`
	Pressure    float64 `json:"pressure"`
}

// Anomaly is one record from the anomaly detection endpoint.
type Anomaly struct {
	Timestamp time.Time      `json:"timestamp"`
	IsAnomaly bool           `json:"is_anomaly"`
	Score     float64        `json:"score"`
	Metrics   AnomalyMetrics `json:"metrics"`
}

// Weather is the current outdoor weather.
type Weather struct {
	Temperature   float64
	Humidity      float64
	WindSpeed     float64
	Precipitation float64 // mm in the last hour
	Sunrise       time.Time
	Sunset        time.Time
	Description   string
	ObservedAt    time.Time
}
