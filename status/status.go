// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

// Package status derives coarse UI classifications from raw domain
// state. Pure mapping only: no state, no side effects, and total over
// the input domain — every status the server can produce maps to
// exactly one classification, with an explicit catch-all instead of a
// failure path.
package status

// Status is the raw pipeline run status reported by the server.
type Status string

// Server-reported statuses.
const (
	StatusQueued     Status = "queued"
	StatusCollecting Status = "collecting"
	StatusAnalyzing  Status = "analyzing"
	StatusDone       Status = "done"
	StatusCanceled   Status = "canceled"
	StatusError      Status = "error"
)

// Counters are the raw progress counters attached to a run.
type Counters struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Class is the UI-facing classification.
type Class string

// Classifications.
const (
	ClassCollecting Class = "collecting"
	ClassProcessing Class = "processing"
	ClassComplete   Class = "complete"
	ClassPartial    Class = "partial"
	ClassFailed     Class = "failed"
	ClassUnknown    Class = "unknown"
)

// Classify maps a run's status and counters to its classification.
// Unrecognized statuses map to ClassUnknown rather than failing.
func Classify(s Status, c Counters) Class {
	switch s {
	case StatusQueued, StatusCollecting:
		return ClassCollecting
	case StatusAnalyzing:
		return ClassProcessing
	case StatusDone:
		switch {
		case c.Failed == 0:
			return ClassComplete
		case c.Completed > 0:
			return ClassPartial
		default:
			return ClassFailed
		}
	case StatusCanceled, StatusError:
		return ClassFailed
	default:
		return ClassUnknown
	}
}

// IsTerminal reports whether the classification can no longer change
// without a new run.
func IsTerminal(c Class) bool {
	switch c {
	case ClassComplete, ClassPartial, ClassFailed:
		return true
	default:
		return false
	}
}

// Progress returns the completed fraction in [0, 1]. A run with no
// known total reports zero.
func (c Counters) Progress() float64 {
	if c.Total <= 0 {
		return 0
	}
	done := c.Completed + c.Failed
	if done > c.Total {
		done = c.Total
	}
	return float64(done) / float64(c.Total)
}
