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
	"fmt"
	"time"

	"github.com/prakash-gist/mod-ping/pkg/logger"
	"github.com/prakash-gist/mod-ping/pkg/models"
)

var (
	errUnknownTimeoutAction  = fmt.Errorf("unknown timeout_action")
	errUnknownDispatchPolicy = fmt.Errorf("unknown dispatch_policy")
)

const (
	defaultProbeInterval = 60 * time.Second
	defaultTimeoutBound  = 32 * time.Second
)

// TimeoutAction selects what happens when a probe goes unanswered within
// the timeout bound.
type TimeoutAction string

const (
	TimeoutActionNone TimeoutAction = "none"
	TimeoutActionKill TimeoutAction = "kill"
)

// DispatchPolicy is the concurrency policy handed to the dispatch
// collaborator for inbound queries; the coordinator records it untouched.
type DispatchPolicy string

const (
	DispatchOneQueue DispatchPolicy = "one_queue"
	DispatchParallel DispatchPolicy = "parallel"
)

// Config is the per-domain keepalive configuration.
type Config struct {
	SendProbes     bool            `json:"send_probes"`
	ProbeInterval  models.Duration `json:"probe_interval"`
	TimeoutAction  TimeoutAction   `json:"timeout_action"`
	TimeoutBound   models.Duration `json:"timeout_bound"`
	DispatchPolicy DispatchPolicy  `json:"dispatch_policy"`
	Logging        *logger.Config  `json:"logging,omitempty"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if time.Duration(c.ProbeInterval) == 0 {
		c.ProbeInterval = models.Duration(defaultProbeInterval)
	}

	if time.Duration(c.TimeoutBound) == 0 {
		c.TimeoutBound = models.Duration(defaultTimeoutBound)
	}

	switch c.TimeoutAction {
	case "":
		c.TimeoutAction = TimeoutActionNone
	case TimeoutActionNone, TimeoutActionKill:
	default:
		return fmt.Errorf("%w: %q", errUnknownTimeoutAction, c.TimeoutAction)
	}

	switch c.DispatchPolicy {
	case "":
		c.DispatchPolicy = DispatchOneQueue
	case DispatchOneQueue, DispatchParallel:
	default:
		return fmt.Errorf("%w: %q", errUnknownDispatchPolicy, c.DispatchPolicy)
	}

	return nil
}
