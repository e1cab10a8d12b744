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

package natsbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/prakash-gist/mod-ping/pkg/keepalive"
	"github.com/prakash-gist/mod-ping/pkg/logger"
)

var errNoDomains = errors.New("at least one domain is required")

// ServiceConfig is the standalone daemon configuration.
type ServiceConfig struct {
	NATSURL string                       `json:"nats_url"`
	Domains map[string]*keepalive.Config `json:"domains"`
	Logging *logger.Config               `json:"logging,omitempty"`
}

// Validate implements config.Validator interface.
func (c *ServiceConfig) Validate() error {
	if c.NATSURL == "" {
		c.NATSURL = nats.DefaultURL
	}

	if len(c.Domains) == 0 {
		return errNoDomains
	}

	for domain, cfg := range c.Domains {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("domain %s: %w", domain, err)
		}
	}

	return nil
}

// Service hosts a keepalive manager over NATS and implements the
// lifecycle.Service interface.
type Service struct {
	cfg     *ServiceConfig
	bridge  *Bridge
	manager *keepalive.Manager
	nc      *nats.Conn
	logger  logger.Logger
}

// NewService connects to NATS and assembles the bridge and manager.
func NewService(_ context.Context, cfg *ServiceConfig, log logger.Logger) (*Service, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("mod-ping"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}

	svc, err := newServiceWithConn(cfg, Wrap(nc), log)
	if err != nil {
		nc.Close()
		return nil, err
	}

	svc.nc = nc

	return svc, nil
}

func newServiceWithConn(cfg *ServiceConfig, conn Conn, log logger.Logger) (*Service, error) {
	bridge, err := New(conn, log)
	if err != nil {
		return nil, err
	}

	manager := keepalive.NewManager(keepalive.Collaborators{
		Router:     bridge,
		Dispatcher: bridge,
		Hooks:      bridge,
		Features:   bridge,
		Terminator: bridge,
	}, nil, log)

	bridge.SetReplyHandler(manager)

	return &Service{
		cfg:     cfg,
		bridge:  bridge,
		manager: manager,
		logger:  log,
	}, nil
}

// Manager exposes the keepalive manager for command surfaces.
func (s *Service) Manager() *keepalive.Manager {
	return s.manager
}

// Start brings up every configured domain and blocks until ctx is canceled.
func (s *Service) Start(ctx context.Context) error {
	for domain, cfg := range s.cfg.Domains {
		if err := s.manager.Start(ctx, domain, cfg); err != nil {
			stopCtx := context.WithoutCancel(ctx)
			_ = s.manager.StopAll(stopCtx)

			return fmt.Errorf("failed to start domain %s: %w", domain, err)
		}

		s.logger.Info().Str("domain", domain).Msg("Keepalive domain online")
	}

	<-ctx.Done()

	return nil
}

// Stop shuts down every domain and drains the NATS connection.
func (s *Service) Stop(ctx context.Context) error {
	err := s.manager.StopAll(ctx)

	if s.nc != nil {
		if drainErr := s.nc.Drain(); drainErr != nil && err == nil {
			err = drainErr
		}
	}

	return err
}
