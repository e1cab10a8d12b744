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

// Package keepalive answers liveness probes from peers and, when enabled,
// originates periodic probes to tracked connections. One coordinator runs
// per routing domain as a single-goroutine actor; coordinators share nothing.
package keepalive

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/models"
	"github.com/prakash-gist/mod-ping/pkg/timerreg"
)

const eventQueueSize = 64

// Collaborators are the external services the coordinator drives. Router and
// SessionHooks are only consulted when probe sending is enabled, Terminator
// only when the timeout action is "kill"; Features may be nil when the host
// has no discovery layer.
type Collaborators struct {
	Router     Router
	Dispatcher Dispatcher
	Hooks      SessionHooks
	Features   Features
	Terminator Terminator
}

// pendingProbe tracks one outstanding probe awaiting a reply (kill policy).
type pendingProbe struct {
	id     models.ClientID
	expiry *time.Timer
}

// Coordinator is the per-domain keepalive state machine. All mutable state
// is owned by the run goroutine; external calls enqueue events.
type Coordinator struct {
	domain   string
	serverID models.ClientID
	cfg      Config
	collab   Collaborators
	registry *timerreg.Registry
	pending  map[string]*pendingProbe
	events   chan event
	done     chan struct{}
	logger   logger.Logger
}

func newCoordinator(domain string, cfg *Config, collab Collaborators,
	clock timerreg.Clock, log logger.Logger) (*Coordinator, error) {
	if collab.Dispatcher == nil {
		return nil, errDispatcherRequired
	}

	if cfg.SendProbes {
		if collab.Router == nil {
			return nil, errRouterRequired
		}

		if collab.Hooks == nil {
			return nil, errHooksRequired
		}
	}

	if cfg.TimeoutAction == TimeoutActionKill && collab.Terminator == nil {
		return nil, ErrTerminatorRequired
	}

	return &Coordinator{
		domain:   domain,
		serverID: models.ClientID(domain),
		cfg:      *cfg,
		collab:   collab,
		registry: timerreg.New(clock, log),
		pending:  make(map[string]*pendingProbe),
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		logger:   log,
	}, nil
}

// start wires the coordinator into its collaborators and launches the event
// loop. Registrations are rolled back if a later one fails.
func (c *Coordinator) start() error {
	if err := c.collab.Dispatcher.Register(
		c.domain, models.NamespacePing, ScopeSession, c.cfg.DispatchPolicy, c.HandleQuery); err != nil {
		return err
	}

	if err := c.collab.Dispatcher.Register(
		c.domain, models.NamespacePing, ScopeServer, c.cfg.DispatchPolicy, c.HandleQuery); err != nil {
		_ = c.collab.Dispatcher.Unregister(c.domain, models.NamespacePing, ScopeSession)
		return err
	}

	if c.collab.Features != nil {
		if err := c.collab.Features.Advertise(c.domain, models.NamespacePing); err != nil {
			c.unregisterDispatch()
			return err
		}
	}

	if c.cfg.SendProbes {
		if err := c.collab.Hooks.Subscribe(c.domain, c); err != nil {
			if c.collab.Features != nil {
				_ = c.collab.Features.Withdraw(c.domain, models.NamespacePing)
			}

			c.unregisterDispatch()

			return err
		}
	}

	go c.run()

	c.logger.Info().
		Str("domain", c.domain).
		Bool("send_probes", c.cfg.SendProbes).
		Dur("probe_interval", time.Duration(c.cfg.ProbeInterval)).
		Str("timeout_action", string(c.cfg.TimeoutAction)).
		Msg("Keepalive coordinator started")

	return nil
}

// HandleQuery answers one inbound query. It is pure request/reply with no
// coordinator state involved, so it is safe to call from any dispatch
// goroutine regardless of the configured dispatch policy.
func (c *Coordinator) HandleQuery(iq *models.IQ) *models.IQ {
	if iq.IsPing() {
		return models.ResultFor(iq)
	}

	return models.ErrorFor(iq)
}

// ConnectionOnline implements ConnectionListener.
func (c *Coordinator) ConnectionOnline(id models.ClientID) {
	c.enqueue(onlineEvent{id: id})
}

// ConnectionOffline implements ConnectionListener.
func (c *Coordinator) ConnectionOffline(id models.ClientID) {
	c.enqueue(offlineEvent{id: id})
}

// HandleReply feeds a probe reply addressed to the server back into the
// coordinator. Only meaningful under the kill policy; otherwise ignored.
func (c *Coordinator) HandleReply(iq *models.IQ) {
	if iq == nil {
		return
	}

	c.enqueue(replyEvent{iq: iq})
}

// ListTimers returns the currently tracked identities with their handles.
// Returns an empty set once the coordinator has stopped.
func (c *Coordinator) ListTimers() map[models.ClientID]*timerreg.Handle {
	resp := make(chan map[models.ClientID]*timerreg.Handle, 1)

	if !c.enqueue(listEvent{resp: resp}) {
		return map[models.ClientID]*timerreg.Handle{}
	}

	select {
	case snapshot := <-resp:
		return snapshot
	case <-c.done:
		return map[models.ClientID]*timerreg.Handle{}
	}
}

// stop requests shutdown and waits for the loop to drain its cleanup.
func (c *Coordinator) stop(ctx context.Context) error {
	if !c.enqueue(stopEvent{}) {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue submits an event, reporting false once the coordinator stopped.
func (c *Coordinator) enqueue(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// timerFired runs on the timer goroutine. It must never block the timer:
// when the queue is saturated the tick is dropped and the next one retries.
func (c *Coordinator) timerFired(id models.ClientID) {
	select {
	case c.events <- fireEvent{id: id}:
	case <-c.done:
	default:
		c.logger.Warn().
			Str("domain", c.domain).
			Str("client_id", string(id)).
			Msg("Event queue saturated, dropping timer fire")
	}
}

func (c *Coordinator) run() {
	defer close(c.done)

	for ev := range c.events {
		switch e := ev.(type) {
		case onlineEvent:
			c.handleOnline(e.id)
		case offlineEvent:
			c.handleOffline(e.id)
		case fireEvent:
			c.handleFire(e.id)
		case replyEvent:
			c.handleReply(e.iq)
		case expireEvent:
			c.handleExpire(e)
		case listEvent:
			e.resp <- c.registry.Snapshot()
		case stopEvent:
			c.shutdown()
			return
		}
	}
}

func (c *Coordinator) handleOnline(id models.ClientID) {
	if !c.cfg.SendProbes {
		return
	}

	err := c.registry.Start(id, time.Duration(c.cfg.ProbeInterval), c.timerFired)
	if err != nil {
		// Scheduling failure disables probing for this one connection
		// rather than taking the whole domain down.
		c.logger.Error().
			Err(err).
			Str("domain", c.domain).
			Str("client_id", string(id)).
			Msg("Failed to schedule liveness timer, connection will not be probed")
	}
}

func (c *Coordinator) handleOffline(id models.ClientID) {
	if !c.cfg.SendProbes {
		return
	}

	c.registry.Stop(id)
	c.dropPendingFor(id)
}

func (c *Coordinator) handleFire(id models.ClientID) {
	// The registry entry may be gone when a fire raced an offline event.
	if !c.registry.Contains(id) {
		return
	}

	reqID := uuid.New().String()
	probe := models.PingFrom(c.serverID, id, reqID)

	if err := c.collab.Router.Route(context.Background(), probe); err != nil {
		c.logger.Warn().
			Err(err).
			Str("domain", c.domain).
			Str("client_id", string(id)).
			Msg("Failed to route liveness probe")

		return
	}

	c.logger.Debug().
		Str("domain", c.domain).
		Str("client_id", string(id)).
		Str("request_id", reqID).
		Msg("Sent liveness probe")

	if c.cfg.TimeoutAction == TimeoutActionKill {
		c.armExpiry(id, reqID)
	}
}

// armExpiry records an outstanding probe and schedules its timeout check.
func (c *Coordinator) armExpiry(id models.ClientID, reqID string) {
	p := &pendingProbe{id: id}

	p.expiry = time.AfterFunc(time.Duration(c.cfg.TimeoutBound), func() {
		select {
		case c.events <- expireEvent{id: id, reqID: reqID}:
		case <-c.done:
		}
	})

	c.pending[reqID] = p
}

func (c *Coordinator) handleReply(iq *models.IQ) {
	if iq.Type != models.IQResult && iq.Type != models.IQError {
		return
	}

	p, ok := c.pending[iq.ID]
	if !ok {
		return
	}

	p.expiry.Stop()
	delete(c.pending, iq.ID)
}

func (c *Coordinator) handleExpire(e expireEvent) {
	p, ok := c.pending[e.reqID]
	if !ok {
		// Answered before the bound.
		return
	}

	delete(c.pending, e.reqID)

	c.logger.Info().
		Str("domain", c.domain).
		Str("client_id", string(p.id)).
		Str("request_id", e.reqID).
		Msg("Liveness probe unanswered within bound, terminating connection")

	if err := c.collab.Terminator.Terminate(context.Background(), p.id, "ping timeout"); err != nil {
		c.logger.Warn().
			Err(err).
			Str("client_id", string(p.id)).
			Msg("Failed to terminate unresponsive connection")
	}

	c.registry.Stop(p.id)
	c.dropPendingFor(p.id)
}

func (c *Coordinator) dropPendingFor(id models.ClientID) {
	for reqID, p := range c.pending {
		if p.id == id {
			p.expiry.Stop()
			delete(c.pending, reqID)
		}
	}
}

// shutdown runs inside the loop as the final event: it detaches from the
// collaborators, cancels every timer, and leaves nothing scheduled behind.
func (c *Coordinator) shutdown() {
	if c.cfg.SendProbes {
		if err := c.collab.Hooks.Unsubscribe(c.domain); err != nil {
			c.logger.Warn().Err(err).Str("domain", c.domain).Msg("Failed to unsubscribe session hooks")
		}
	}

	if c.collab.Features != nil {
		if err := c.collab.Features.Withdraw(c.domain, models.NamespacePing); err != nil {
			c.logger.Warn().Err(err).Str("domain", c.domain).Msg("Failed to withdraw ping feature")
		}
	}

	c.unregisterDispatch()

	for reqID, p := range c.pending {
		p.expiry.Stop()
		delete(c.pending, reqID)
	}

	c.registry.ClearAll()

	c.logger.Info().Str("domain", c.domain).Msg("Keepalive coordinator stopped")
}

func (c *Coordinator) unregisterDispatch() {
	if err := c.collab.Dispatcher.Unregister(c.domain, models.NamespacePing, ScopeSession); err != nil {
		c.logger.Warn().Err(err).Str("domain", c.domain).Msg("Failed to unregister session-scope handler")
	}

	if err := c.collab.Dispatcher.Unregister(c.domain, models.NamespacePing, ScopeServer); err != nil {
		c.logger.Warn().Err(err).Str("domain", c.domain).Msg("Failed to unregister server-scope handler")
	}
}
