/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package timerreg keeps one recurring liveness timer per tracked connection.
//
// A Registry instance belongs to a single coordinator goroutine; all calls
// except timer fires happen on that goroutine, so the registry itself holds
// no locks. Fire callbacks run on the timer goroutine and must only enqueue
// work, never touch coordinator state directly.
package timerreg

import (
	"time"

	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/models"
)

const cancelWait = 250 * time.Millisecond

// FireFunc is invoked on every tick with the identity the timer belongs to.
type FireFunc func(id models.ClientID)

// Handle is the cancelable handle for one connection's recurring timer.
type Handle struct {
	id      models.ClientID
	ticker  Ticker
	started time.Time
	stop    chan struct{}
	done    chan struct{}
}

// ID returns the connection identity the handle tracks.
func (h *Handle) ID() models.ClientID { return h.id }

// Started returns when the timer was scheduled.
func (h *Handle) Started() time.Time { return h.started }

func (h *Handle) run(onFire FireFunc) {
	defer close(h.done)
	defer h.ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-h.ticker.Chan():
			onFire(h.id)
		}
	}
}

// cancel stops the timer and waits briefly for the goroutine to exit.
func (h *Handle) cancel() error {
	close(h.stop)

	select {
	case <-h.done:
		return nil
	case <-time.After(cancelWait):
		return errCancelTimeout
	}
}

// Registry maps connection identities to their live timer handles.
type Registry struct {
	clock  Clock
	logger logger.Logger
	timers map[models.ClientID]*Handle
}

// New creates an empty registry. A nil clock defaults to the real clock.
func New(clock Clock, log logger.Logger) *Registry {
	if clock == nil {
		clock = realClock{}
	}

	return &Registry{
		clock:  clock,
		logger: log,
		timers: make(map[models.ClientID]*Handle),
	}
}

// Start schedules a recurring onFire(id) every interval. If id already has a
// live timer the call is a no-op; at most one timer per identity exists.
func (r *Registry) Start(id models.ClientID, interval time.Duration, onFire FireFunc) error {
	if _, ok := r.timers[id]; ok {
		return nil
	}

	if interval <= 0 {
		return ErrInvalidInterval
	}

	h := &Handle{
		id:      id,
		ticker:  r.clock.Ticker(interval),
		started: r.clock.Now(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go h.run(onFire)

	r.timers[id] = h

	r.logger.Debug().
		Str("client_id", string(id)).
		Dur("interval", interval).
		Msg("Started liveness timer")

	return nil
}

// Stop cancels and removes the timer for id. No-op if untracked. The entry
// is removed even when cancellation fails, so tracking state never leaks.
func (r *Registry) Stop(id models.ClientID) {
	h, ok := r.timers[id]
	if !ok {
		return
	}

	if err := h.cancel(); err != nil {
		r.logger.Warn().
			Err(err).
			Str("client_id", string(id)).
			Msg("Failed to cancel liveness timer")
	}

	delete(r.timers, id)
}

// ClearAll cancels every timer and empties the registry. Used on shutdown.
func (r *Registry) ClearAll() {
	for id, h := range r.timers {
		if err := h.cancel(); err != nil {
			r.logger.Warn().
				Err(err).
				Str("client_id", string(id)).
				Msg("Failed to cancel liveness timer during shutdown")
		}
	}

	r.timers = make(map[models.ClientID]*Handle)
}

// Contains reports whether id has a live timer.
func (r *Registry) Contains(id models.ClientID) bool {
	_, ok := r.timers[id]
	return ok
}

// Snapshot returns a copy of the live (id, handle) set without mutating it.
func (r *Registry) Snapshot() map[models.ClientID]*Handle {
	out := make(map[models.ClientID]*Handle, len(r.timers))
	for id, h := range r.timers {
		out[id] = h
	}

	return out
}

// Len returns the number of live timers.
func (r *Registry) Len() int {
	return len(r.timers)
}
