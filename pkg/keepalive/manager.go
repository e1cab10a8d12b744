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

package keepalive

import (
	"context"
	"fmt"
	"sync"

	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/models"
	"github.com/prakash-gist/mod-ping/pkg/timerreg"
)

// Manager owns the process-wide set of per-domain coordinators. Domains are
// fully independent; the mutex only guards the domain map itself.
type Manager struct {
	mu      sync.Mutex
	domains map[string]*Coordinator
	collab  Collaborators
	clock   timerreg.Clock
	logger  logger.Logger
}

// NewManager creates a manager. A nil clock defaults to the real clock.
func NewManager(collab Collaborators, clock timerreg.Clock, log logger.Logger) *Manager {
	if clock == nil {
		clock = timerreg.NewRealClock()
	}

	return &Manager{
		domains: make(map[string]*Coordinator),
		collab:  collab,
		clock:   clock,
		logger:  log,
	}
}

// Start creates and starts the coordinator for domain. The config must have
// been validated; Start validates it again defensively for direct callers.
func (m *Manager) Start(_ context.Context, domain string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.domains[domain]; ok {
		return fmt.Errorf("%w: %s", ErrDomainAlreadyStarted, domain)
	}

	coord, err := newCoordinator(domain, cfg, m.collab, m.clock, m.logger)
	if err != nil {
		return err
	}

	if err := coord.start(); err != nil {
		return fmt.Errorf("failed to start keepalive for %s: %w", domain, err)
	}

	m.domains[domain] = coord

	return nil
}

// Stop shuts down the coordinator for domain, canceling all of its timers.
func (m *Manager) Stop(ctx context.Context, domain string) error {
	m.mu.Lock()
	coord, ok := m.domains[domain]
	delete(m.domains, domain)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	return coord.stop(ctx)
}

// StopAll shuts down every domain. The first error is returned after all
// domains have been asked to stop.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	coords := make([]*Coordinator, 0, len(m.domains))

	for domain, coord := range m.domains {
		coords = append(coords, coord)
		delete(m.domains, domain)
	}
	m.mu.Unlock()

	var firstErr error

	for _, coord := range coords {
		if err := coord.stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// StartTracking begins probing id within domain, equivalent to a
// connection-online notification.
func (m *Manager) StartTracking(domain string, id models.ClientID) error {
	coord, err := m.coordinator(domain)
	if err != nil {
		return err
	}

	coord.ConnectionOnline(id)

	return nil
}

// StopTracking stops probing id within domain, equivalent to a
// connection-offline notification.
func (m *Manager) StopTracking(domain string, id models.ClientID) error {
	coord, err := m.coordinator(domain)
	if err != nil {
		return err
	}

	coord.ConnectionOffline(id)

	return nil
}

// ListTimers returns the tracked identities for domain.
func (m *Manager) ListTimers(domain string) (map[models.ClientID]*timerreg.Handle, error) {
	coord, err := m.coordinator(domain)
	if err != nil {
		return nil, err
	}

	return coord.ListTimers(), nil
}

// HandleQuery dispatches an inbound query to the domain's coordinator.
func (m *Manager) HandleQuery(domain string, iq *models.IQ) (*models.IQ, error) {
	coord, err := m.coordinator(domain)
	if err != nil {
		return nil, err
	}

	return coord.HandleQuery(iq), nil
}

// HandleReply feeds a probe reply into the domain's coordinator.
func (m *Manager) HandleReply(domain string, iq *models.IQ) error {
	coord, err := m.coordinator(domain)
	if err != nil {
		return err
	}

	coord.HandleReply(iq)

	return nil
}

// Domains returns the names of the currently started domains.
func (m *Manager) Domains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.domains))
	for domain := range m.domains {
		out = append(out, domain)
	}

	return out
}

func (m *Manager) coordinator(domain string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coord, ok := m.domains[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	return coord, nil
}
