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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prakash-gist/mod-ping/pkg/keepalive"
	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/models"
)

func TestServiceConfigValidate(t *testing.T) {
	cfg := &ServiceConfig{}
	require.ErrorIs(t, cfg.Validate(), errNoDomains)

	cfg = &ServiceConfig{
		Domains: map[string]*keepalive.Config{"example.org": {}},
	}
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.NATSURL, "NATS URL should default")

	cfg = &ServiceConfig{
		Domains: map[string]*keepalive.Config{
			"example.org": {TimeoutAction: "reboot"},
		},
	}
	require.Error(t, cfg.Validate())
}

func TestServiceEndToEnd(t *testing.T) {
	conn := newStubConn()

	cfg := &ServiceConfig{
		Domains: map[string]*keepalive.Config{
			"example.org": {
				SendProbes:    true,
				ProbeInterval: models.Duration(40 * time.Millisecond),
			},
		},
	}
	require.NoError(t, cfg.Validate())

	svc, err := newServiceWithConn(cfg, conn, logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan error, 1)

	go func() { started <- svc.Start(ctx) }()

	// The domain subscribes its query and session subjects on startup.
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()

		_, q := conn.subs["modping.iq.example.org"]
		_, s := conn.subs["modping.session.example.org"]

		return q && s
	}, time.Second, 5*time.Millisecond)

	// A session coming online starts producing probes on the wire.
	conn.inject(t, "modping.session.example.org", "",
		SessionEvent{Event: "online", ClientID: "alice@example.org/desk"})

	require.Eventually(t, func() bool {
		return len(conn.published("modping.probe.example.org")) > 0
	}, time.Second, 5*time.Millisecond)

	probes := conn.published("modping.probe.example.org")

	var probe models.IQ
	require.NoError(t, json.Unmarshal(probes[0].data, &probe))
	assert.Equal(t, models.ClientID("alice@example.org/desk"), probe.To)
	assert.True(t, probe.IsPing())

	// An inbound ping query gets a result reply on its reply subject.
	conn.inject(t, "modping.iq.example.org", "inbox.7", &models.IQ{
		ID:      "q7",
		Type:    models.IQGet,
		From:    "alice@example.org/desk",
		To:      "example.org",
		Payload: &models.Payload{Name: "ping", Namespace: models.NamespacePing},
	})

	replies := conn.published("inbox.7")
	require.Len(t, replies, 1)

	var reply models.IQ
	require.NoError(t, json.Unmarshal(replies[0].data, &reply))
	assert.Equal(t, models.IQResult, reply.Type)
	assert.Equal(t, "q7", reply.ID)

	cancel()
	require.NoError(t, <-started)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()

	require.NoError(t, svc.Stop(stopCtx))

	timers, err := svc.Manager().ListTimers("example.org")
	require.ErrorIs(t, err, keepalive.ErrUnknownDomain)
	assert.Nil(t, timers)
}
