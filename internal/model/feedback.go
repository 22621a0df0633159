package model

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is an explicit reward signal submitted against a prior Judgment.
// Consumed by the Router's Q-learning update as the preferred reward source
// over the derived quality/cost estimate.
type Feedback struct {
	ID         uuid.UUID
	JudgmentID uuid.UUID
	Score      float64 // in [-1, 1]; positive reinforces the routing action taken
	Comment    string
	SubmittedAt time.Time
}
