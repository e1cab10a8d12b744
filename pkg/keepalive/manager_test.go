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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/models"
)

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	mgr := NewManager(Collaborators{
		Router:     newChanRouter(),
		Dispatcher: newStubDispatcher(),
		Hooks:      &stubHooks{},
		Features:   &stubFeatures{},
		Terminator: newChanTerminator(),
	}, clock, logger.NewTestLogger())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = mgr.StopAll(ctx)
	})

	return mgr, clock
}

func TestManagerStartStop(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, "example.org", &Config{SendProbes: true}))
	assert.Equal(t, []string{"example.org"}, mgr.Domains())

	err := mgr.Start(ctx, "example.org", &Config{})
	require.ErrorIs(t, err, ErrDomainAlreadyStarted)

	require.NoError(t, mgr.Stop(ctx, "example.org"))
	assert.Empty(t, mgr.Domains())

	err = mgr.Stop(ctx, "example.org")
	require.ErrorIs(t, err, ErrUnknownDomain)
}

func TestManagerStartRejectsInvalidConfig(t *testing.T) {
	mgr, _ := newTestManager(t)

	err := mgr.Start(context.Background(), "example.org", &Config{TimeoutAction: "reboot"})
	require.ErrorIs(t, err, errUnknownTimeoutAction)
	assert.Empty(t, mgr.Domains())
}

func TestManagerTracking(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, "example.org", &Config{SendProbes: true}))

	require.NoError(t, mgr.StartTracking("example.org", "alice@example.org/desk"))
	require.NoError(t, mgr.StartTracking("example.org", "bob@example.org/web"))

	timers, err := mgr.ListTimers("example.org")
	require.NoError(t, err)
	assert.Len(t, timers, 2)

	require.NoError(t, mgr.StopTracking("example.org", "alice@example.org/desk"))

	timers, err = mgr.ListTimers("example.org")
	require.NoError(t, err)
	assert.Len(t, timers, 1)
	assert.Contains(t, timers, models.ClientID("bob@example.org/web"))
}

func TestManagerUnknownDomain(t *testing.T) {
	mgr, _ := newTestManager(t)

	require.ErrorIs(t, mgr.StartTracking("nowhere.org", "a@nowhere.org/1"), ErrUnknownDomain)
	require.ErrorIs(t, mgr.StopTracking("nowhere.org", "a@nowhere.org/1"), ErrUnknownDomain)

	_, err := mgr.ListTimers("nowhere.org")
	require.ErrorIs(t, err, ErrUnknownDomain)

	_, err = mgr.HandleQuery("nowhere.org", &models.IQ{ID: "x", Type: models.IQGet})
	require.ErrorIs(t, err, ErrUnknownDomain)

	require.ErrorIs(t, mgr.HandleReply("nowhere.org", &models.IQ{ID: "x"}), ErrUnknownDomain)
}

func TestManagerDomainsAreIndependent(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, "example.org", &Config{SendProbes: true}))
	require.NoError(t, mgr.Start(ctx, "example.net", &Config{SendProbes: true}))

	require.NoError(t, mgr.StartTracking("example.org", "alice@example.org/desk"))

	orgTimers, err := mgr.ListTimers("example.org")
	require.NoError(t, err)
	netTimers, err := mgr.ListTimers("example.net")
	require.NoError(t, err)

	assert.Len(t, orgTimers, 1)
	assert.Empty(t, netTimers)

	require.NoError(t, mgr.Stop(ctx, "example.net"))

	orgTimers, err = mgr.ListTimers("example.org")
	require.NoError(t, err)
	assert.Len(t, orgTimers, 1, "stopping one domain must not affect another")
}

func TestManagerHandleQuery(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, "example.org", &Config{}))

	reply, err := mgr.HandleQuery("example.org", &models.IQ{
		ID:      "q1",
		Type:    models.IQGet,
		From:    "alice@example.org/desk",
		To:      "example.org",
		Payload: &models.Payload{Name: "ping", Namespace: models.NamespacePing},
	})
	require.NoError(t, err)
	assert.Equal(t, models.IQResult, reply.Type)
}

func TestManagerStopAll(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, "example.org", &Config{SendProbes: true}))
	require.NoError(t, mgr.Start(ctx, "example.net", &Config{}))

	require.NoError(t, mgr.StopAll(ctx))
	assert.Empty(t, mgr.Domains())
}
