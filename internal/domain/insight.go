package domain

import "time"

const MetricCartUpdate = "cart_update"

type Insight struct {
	Metric    string    `bson:"metric" json:"metric"`
	Value     float64   `bson:"value" json:"value"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
