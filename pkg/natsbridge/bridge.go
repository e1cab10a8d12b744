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

// Package natsbridge hosts the keepalive subsystem over NATS subjects. It
// implements every collaborator interface the coordinator consumes: session
// lifecycle events and inbound queries arrive on per-domain subjects, and
// outbound probes, feature announcements, and kill commands are published
// back out. A routing server embedding the library directly does not need
// this package; it exists for the standalone daemon.
package natsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/prakash-gist/mod-ping/pkg/keepalive"
	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/models"
)

const (
	subjectProbePrefix   = "modping.probe."
	subjectSessionPrefix = "modping.session."
	subjectQueryPrefix   = "modping.iq."
	subjectReplyPrefix   = "modping.reply."
	subjectFeaturePrefix = "modping.feature."
	subjectKillPrefix    = "modping.kill."
)

var (
	errNoHandlerForScope = errors.New("no handler registered for scope")
	errNilConn           = errors.New("nats connection is required")
)

// Subscription is the cancelable handle for one subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// Conn is the slice of the NATS client the bridge needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (Subscription, error)
}

// natsConn adapts *nats.Conn to the Conn interface.
type natsConn struct {
	nc *nats.Conn
}

// Wrap adapts a live NATS connection for use with the bridge.
func Wrap(nc *nats.Conn) Conn {
	return &natsConn{nc: nc}
}

func (c *natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *natsConn) Subscribe(subject string, handler nats.MsgHandler) (Subscription, error) {
	return c.nc.Subscribe(subject, handler)
}

// SessionEvent is the wire form of a connection-lifecycle notification.
type SessionEvent struct {
	Event    string          `json:"event"` // "online" or "offline"
	ClientID models.ClientID `json:"client_id"`
}

// ReplyHandler receives probe replies addressed to a domain's server
// identity. *keepalive.Manager satisfies it.
type ReplyHandler interface {
	HandleReply(domain string, iq *models.IQ) error
}

type domainState struct {
	listener   keepalive.ConnectionListener
	handlers   map[keepalive.Scope]keepalive.QueryHandler
	sessionSub Subscription
	querySub   Subscription
	replySub   Subscription
}

// Bridge connects the keepalive manager to NATS subjects.
type Bridge struct {
	mu      sync.Mutex
	conn    Conn
	replies ReplyHandler
	domains map[string]*domainState
	logger  logger.Logger
}

// New creates a bridge over an established connection.
func New(conn Conn, log logger.Logger) (*Bridge, error) {
	if conn == nil {
		return nil, errNilConn
	}

	return &Bridge{
		conn:    conn,
		domains: make(map[string]*domainState),
		logger:  log,
	}, nil
}

// SetReplyHandler wires the probe-reply sink. Called once, before any
// domain is started.
func (b *Bridge) SetReplyHandler(h ReplyHandler) {
	b.replies = h
}

func (b *Bridge) domainState(domain string) *domainState {
	st, ok := b.domains[domain]
	if !ok {
		st = &domainState{handlers: make(map[keepalive.Scope]keepalive.QueryHandler)}
		b.domains[domain] = st
	}

	return st
}

// Route implements keepalive.Router: probes are published to the domain's
// probe subject for the routing layer to deliver.
func (b *Bridge) Route(_ context.Context, iq *models.IQ) error {
	data, err := json.Marshal(iq)
	if err != nil {
		return fmt.Errorf("failed to marshal probe: %w", err)
	}

	return b.conn.Publish(subjectProbePrefix+string(iq.From), data)
}

// Register implements keepalive.Dispatcher. The first handler for a domain
// subscribes to its query subject.
func (b *Bridge) Register(domain, _ string, scope keepalive.Scope,
	_ keepalive.DispatchPolicy, handler keepalive.QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.domainState(domain)
	st.handlers[scope] = handler

	if st.querySub != nil {
		return nil
	}

	sub, err := b.conn.Subscribe(subjectQueryPrefix+domain, func(msg *nats.Msg) {
		b.handleQueryMsg(domain, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe query subject for %s: %w", domain, err)
	}

	st.querySub = sub

	return nil
}

// Unregister implements keepalive.Dispatcher.
func (b *Bridge) Unregister(domain, _ string, scope keepalive.Scope) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.domains[domain]
	if !ok {
		return nil
	}

	delete(st.handlers, scope)

	if len(st.handlers) == 0 && st.querySub != nil {
		err := st.querySub.Unsubscribe()
		st.querySub = nil

		if err != nil {
			return fmt.Errorf("failed to unsubscribe query subject for %s: %w", domain, err)
		}
	}

	return nil
}

// Subscribe implements keepalive.SessionHooks: lifecycle events for the
// domain flow from its session subject, probe replies from its reply subject.
func (b *Bridge) Subscribe(domain string, listener keepalive.ConnectionListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.domainState(domain)
	st.listener = listener

	sessionSub, err := b.conn.Subscribe(subjectSessionPrefix+domain, func(msg *nats.Msg) {
		b.handleSessionMsg(domain, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe session subject for %s: %w", domain, err)
	}

	replySub, err := b.conn.Subscribe(subjectReplyPrefix+domain, func(msg *nats.Msg) {
		b.handleReplyMsg(domain, msg)
	})
	if err != nil {
		_ = sessionSub.Unsubscribe()
		return fmt.Errorf("failed to subscribe reply subject for %s: %w", domain, err)
	}

	st.sessionSub = sessionSub
	st.replySub = replySub

	return nil
}

// Unsubscribe implements keepalive.SessionHooks.
func (b *Bridge) Unsubscribe(domain string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.domains[domain]
	if !ok {
		return nil
	}

	st.listener = nil

	var firstErr error

	for _, sub := range []*Subscription{&st.sessionSub, &st.replySub} {
		if *sub == nil {
			continue
		}

		if err := (*sub).Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}

		*sub = nil
	}

	return firstErr
}

// Advertise implements keepalive.Features by announcing the capability.
func (b *Bridge) Advertise(domain, feature string) error {
	return b.publishFeature(domain, feature, true)
}

// Withdraw implements keepalive.Features.
func (b *Bridge) Withdraw(domain, feature string) error {
	return b.publishFeature(domain, feature, false)
}

func (b *Bridge) publishFeature(domain, feature string, enabled bool) error {
	data, err := json.Marshal(map[string]interface{}{
		"feature": feature,
		"enabled": enabled,
	})
	if err != nil {
		return err
	}

	return b.conn.Publish(subjectFeaturePrefix+domain, data)
}

// Terminate implements keepalive.Terminator by publishing a kill command
// for the session manager to act on.
func (b *Bridge) Terminate(_ context.Context, id models.ClientID, reason string) error {
	data, err := json.Marshal(map[string]interface{}{
		"client_id": id,
		"reason":    reason,
	})
	if err != nil {
		return err
	}

	return b.conn.Publish(subjectKillPrefix+string(id), data)
}

func (b *Bridge) handleSessionMsg(domain string, msg *nats.Msg) {
	var ev SessionEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		b.logger.Warn().Err(err).Str("domain", domain).Msg("Dropping malformed session event")
		return
	}

	b.mu.Lock()
	st, ok := b.domains[domain]

	var listener keepalive.ConnectionListener
	if ok {
		listener = st.listener
	}
	b.mu.Unlock()

	if listener == nil {
		return
	}

	switch ev.Event {
	case "online":
		listener.ConnectionOnline(ev.ClientID)
	case "offline":
		listener.ConnectionOffline(ev.ClientID)
	default:
		b.logger.Warn().Str("event", ev.Event).Str("domain", domain).Msg("Unknown session event")
	}
}

func (b *Bridge) handleQueryMsg(domain string, msg *nats.Msg) {
	var iq models.IQ
	if err := json.Unmarshal(msg.Data, &iq); err != nil {
		b.logger.Warn().Err(err).Str("domain", domain).Msg("Dropping malformed query")
		return
	}

	handler, err := b.handlerFor(domain, &iq)
	if err != nil {
		b.logger.Warn().Err(err).Str("domain", domain).Msg("No query handler")
		return
	}

	reply := handler(&iq)

	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		b.logger.Error().Err(err).Str("domain", domain).Msg("Failed to marshal query reply")
		return
	}

	if err := b.conn.Publish(msg.Reply, data); err != nil {
		b.logger.Warn().Err(err).Str("domain", domain).Msg("Failed to publish query reply")
	}
}

// handlerFor picks the server-scope handler for queries addressed to the
// bare domain and the session-scope handler otherwise.
func (b *Bridge) handlerFor(domain string, iq *models.IQ) (keepalive.QueryHandler, error) {
	scope := keepalive.ScopeSession
	if string(iq.To) == domain {
		scope = keepalive.ScopeServer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.domains[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", errNoHandlerForScope, domain, scope)
	}

	handler, ok := st.handlers[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", errNoHandlerForScope, domain, scope)
	}

	return handler, nil
}

func (b *Bridge) handleReplyMsg(domain string, msg *nats.Msg) {
	if b.replies == nil {
		return
	}

	var iq models.IQ
	if err := json.Unmarshal(msg.Data, &iq); err != nil {
		b.logger.Warn().Err(err).Str("domain", domain).Msg("Dropping malformed probe reply")
		return
	}

	if err := b.replies.HandleReply(domain, &iq); err != nil {
		b.logger.Warn().Err(err).Str("domain", domain).Msg("Failed to hand off probe reply")
	}
}
