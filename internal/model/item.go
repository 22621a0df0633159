// Package model defines the core entities shared across the orchestrator:
// items, classifications, judgments, dog-pack votes, consensus results,
// routing decisions, router Q-state, cost records, and bus events.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the recognized shapes of an Item's payload.
type Kind string

const (
	KindCodeReview       Kind = "code_review"
	KindTokenAnalysis    Kind = "token_analysis"
	KindPatternDetection Kind = "pattern_detection"
	KindToolInvocation   Kind = "tool_invocation"
	KindFreeText         Kind = "free_text"
)

// Item is an opaque unit of work submitted for judgment. Immutable once
// admitted: nothing downstream mutates an Item after Submit receives it.
type Item struct {
	ID         uuid.UUID
	Kind       Kind
	Body       string
	Context    map[string]any
	UserID     string
	SessionID  string
	ReceivedAt time.Time
}
