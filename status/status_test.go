// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		counters Counters
		want     Class
	}{
		{name: "queued", status: StatusQueued, want: ClassCollecting},
		{name: "collecting", status: StatusCollecting, want: ClassCollecting},
		{name: "analyzing", status: StatusAnalyzing, want: ClassProcessing},
		{
			name:     "done clean",
			status:   StatusDone,
			counters: Counters{Total: 10, Completed: 10},
			want:     ClassComplete,
		},
		{
			name:     "done with failures",
			status:   StatusDone,
			counters: Counters{Total: 10, Completed: 7, Failed: 3},
			want:     ClassPartial,
		},
		{
			name:     "done nothing succeeded",
			status:   StatusDone,
			counters: Counters{Total: 10, Failed: 10},
			want:     ClassFailed,
		},
		{name: "done zero counters", status: StatusDone, want: ClassComplete},
		{name: "canceled", status: StatusCanceled, want: ClassFailed},
		{name: "error", status: StatusError, want: ClassFailed},
		{name: "unrecognized", status: Status("archived"), want: ClassUnknown},
		{name: "empty", status: Status(""), want: ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.counters))
		})
	}
}

func TestClassifyIgnoresCountersOutsideDone(t *testing.T) {
	// Counters only disambiguate the done state; everywhere else the
	// status alone decides.
	c := Counters{Total: 10, Failed: 10}
	assert.Equal(t, ClassCollecting, Classify(StatusQueued, c))
	assert.Equal(t, ClassProcessing, Classify(StatusAnalyzing, c))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(ClassComplete))
	assert.True(t, IsTerminal(ClassPartial))
	assert.True(t, IsTerminal(ClassFailed))

	assert.False(t, IsTerminal(ClassCollecting))
	assert.False(t, IsTerminal(ClassProcessing))
	assert.False(t, IsTerminal(ClassUnknown))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Counters{}.Progress())
	assert.Equal(t, 0.0, Counters{Total: -1, Completed: 5}.Progress())
	assert.Equal(t, 0.5, Counters{Total: 10, Completed: 5}.Progress())
	assert.Equal(t, 0.8, Counters{Total: 10, Completed: 5, Failed: 3}.Progress())
	assert.Equal(t, 1.0, Counters{Total: 10, Completed: 10}.Progress())

	// Overcounted runs clamp to 1.
	assert.Equal(t, 1.0, Counters{Total: 10, Completed: 12}.Progress())
}
