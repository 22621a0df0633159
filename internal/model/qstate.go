package model

import "time"

// QState is one sparse entry in the router's learned Q-table, keyed by a
// classification feature vector and an action (route decision) key.
type QState struct {
	ClassificationKey string
	ActionKey         string
	Value             float64
	Visits            int
	LastUpdate        time.Time
}

// ClassificationKey derives the QState feature key from a Classification:
// time_of_day_bucket|intent|domain|complexity.
func ClassificationKey(intent, domain string, complexity Complexity, bucket TimeOfDayBucket) string {
	return string(bucket) + "|" + intent + "|" + domain + "|" + string(complexity)
}
