// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"log/slog"

	"github.com/pulsedash/livefeed/wire"
)

// Toast is a transient UI notification.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Toaster is the fire-and-forget notification sink provided by the UI
// shell. No return value is consumed.
type Toaster interface {
	Show(t Toast)
}

// SetToaster installs the toast sink driven by user-notification
// envelopes. It may be nil to disable toasts.
func (r *Registry) SetToaster(t Toaster) {
	r.toastMu.Lock()
	r.toaster = t
	r.toastMu.Unlock()
}

// showToast runs in addition to, and independent of, normal topic
// dispatch for the user-notification topic.
func (r *Registry) showToast(env wire.Envelope) {
	r.toastMu.RLock()
	toaster := r.toaster
	r.toastMu.RUnlock()

	if toaster == nil {
		return
	}

	var t Toast
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		r.logger.Warn("toast_payload_invalid", slog.String("error", err.Error()))
		return
	}
	if t.Severity == "" {
		t.Severity = "info"
	}
	toaster.Show(t)
}
