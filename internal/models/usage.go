package models

import "time"

type UsageRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Cost      float64   `json:"cost"`
}

type DailyCost struct {
	Day  time.Time `json:"day"`
	Cost float64   `json:"cost"`
}

type ModelCost struct {
	Model string  `json:"model"`
	Cost  float64 `json:"cost"`
}
