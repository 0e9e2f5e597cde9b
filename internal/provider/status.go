package provider

import (
	"math"
	"strconv"
	"strings"

	"github.com/motionforge/api/internal/model"
)

// ProgressScale tells how an adapter's provider reports progress
type ProgressScale string

const (
	// ProgressScaleUnit is already normalized to 0–1
	ProgressScaleUnit ProgressScale = "unit"
	// ProgressScalePercent is 0–100, as a number or a numeric string
	ProgressScalePercent ProgressScale = "percent"
)

// IsValid reports whether the scale is known
func (s ProgressScale) IsValid() bool {
	return s == ProgressScaleUnit || s == ProgressScalePercent
}

// defaultStates maps provider status words (lower case) to normalized states.
// Adapters may add or override entries.
var defaultStates = map[string]model.JobState{
	"pending":     model.JobStateQueued,
	"queued":      model.JobStateQueued,
	"in_queue":    model.JobStateQueued,
	"throttled":   model.JobStateQueued,
	"submitted":   model.JobStateQueued,
	"starting":    model.JobStateQueued,
	"created":     model.JobStateQueued,
	"waiting":     model.JobStateQueued,
	"running":     model.JobStateRunning,
	"processing":  model.JobStateRunning,
	"in_progress": model.JobStateRunning,
	"generating":  model.JobStateRunning,
	"succeeded":   model.JobStateSucceeded,
	"success":     model.JobStateSucceeded,
	"completed":   model.JobStateSucceeded,
	"complete":    model.JobStateSucceeded,
	"done":        model.JobStateSucceeded,
	"finished":    model.JobStateSucceeded,
	"failed":      model.JobStateFailed,
	"failure":     model.JobStateFailed,
	"error":       model.JobStateFailed,
	"cancelled":   model.JobStateFailed,
	"canceled":    model.JobStateFailed,
	"timed_out":   model.JobStateFailed,
	"rejected":    model.JobStateFailed,
}

func normalizeState(raw string, overrides map[string]model.JobState) (model.JobState, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	for k, v := range overrides {
		if strings.ToLower(k) == key {
			return v, true
		}
	}
	state, ok := defaultStates[key]
	return state, ok
}

// NormalizeProgress converts a raw progress value on the given scale into [0,1]
func NormalizeProgress(value float64, scale ProgressScale) float64 {
	if scale == ProgressScalePercent {
		value = value / 100
	}
	return math.Min(1, math.Max(0, value))
}

// progressValue accepts JSON numbers and numeric strings such as "50" or "50%".
// A trailing percent sign marks the value as percent regardless of the adapter scale.
func progressValue(raw any) (value float64, percent bool, ok bool) {
	switch t := raw.(type) {
	case float64:
		value = t
	case string:
		s := strings.TrimSpace(t)
		if strings.HasSuffix(s, "%") {
			percent = true
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, false
		}
		value = parsed
	default:
		return 0, false, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false, false
	}
	return value, percent, true
}
