// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package stream

import "errors"

// Manager errors. Transport failures are never surfaced through these:
// they are absorbed into the reconnect schedule. Only configuration
// mistakes reach callers.
var (
	ErrNilOptions      = errors.New("options cannot be nil")
	ErrNoURL           = errors.New("push channel URL not configured")
	ErrNilFrameHandler = errors.New("frame handler not configured")
)
