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

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPing(t *testing.T) {
	tests := []struct {
		name string
		iq   IQ
		want bool
	}{
		{
			name: "valid ping get",
			iq: IQ{
				ID:      "p1",
				Type:    IQGet,
				Payload: &Payload{Name: "ping", Namespace: NamespacePing},
			},
			want: true,
		},
		{
			name: "ping with set type",
			iq: IQ{
				ID:      "p2",
				Type:    IQSet,
				Payload: &Payload{Name: "ping", Namespace: NamespacePing},
			},
			want: false,
		},
		{
			name: "wrong namespace",
			iq: IQ{
				ID:      "p3",
				Type:    IQGet,
				Payload: &Payload{Name: "ping", Namespace: "urn:example:other"},
			},
			want: false,
		},
		{
			name: "wrong element name",
			iq: IQ{
				ID:      "p4",
				Type:    IQGet,
				Payload: &Payload{Name: "query", Namespace: NamespacePing},
			},
			want: false,
		},
		{
			name: "no payload",
			iq:   IQ{ID: "p5", Type: IQGet},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.iq.IsPing())
		})
	}
}

func TestResultFor(t *testing.T) {
	req := &IQ{
		ID:      "abc123",
		Type:    IQGet,
		From:    "user@example.org/phone",
		To:      "example.org",
		Payload: &Payload{Name: "ping", Namespace: NamespacePing},
	}

	reply := ResultFor(req)

	assert.Equal(t, "abc123", reply.ID)
	assert.Equal(t, IQResult, reply.Type)
	assert.Equal(t, ClientID("example.org"), reply.From)
	assert.Equal(t, ClientID("user@example.org/phone"), reply.To)
	assert.Nil(t, reply.Payload, "result reply must have an empty body")
	assert.Nil(t, reply.Error)
}

func TestErrorFor(t *testing.T) {
	req := &IQ{
		ID:      "abc124",
		Type:    IQSet,
		From:    "user@example.org/phone",
		To:      "example.org",
		Payload: &Payload{Name: "ping", Namespace: NamespacePing},
	}

	reply := ErrorFor(req)

	assert.Equal(t, "abc124", reply.ID)
	assert.Equal(t, IQError, reply.Type)
	assert.Equal(t, req.Payload, reply.Payload, "error reply echoes the original element")
	require.NotNil(t, reply.Error)
	assert.Equal(t, ConditionFeatureNotImplemented, reply.Error.Condition)
	assert.Equal(t, ErrorTypeCancel, reply.Error.Type)
}

func TestPingFrom(t *testing.T) {
	probe := PingFrom("example.org", "user@example.org/phone", "req-1")

	assert.Equal(t, IQGet, probe.Type)
	assert.Equal(t, ClientID("example.org"), probe.From)
	assert.Equal(t, ClientID("user@example.org/phone"), probe.To)
	assert.True(t, probe.IsPing())
}

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "numeric seconds", input: `60`, want: 60 * time.Second},
		{name: "duration string", input: `"90s"`, want: 90 * time.Second},
		{name: "minutes string", input: `"2m"`, want: 2 * time.Minute},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestDurationMarshalJSON(t *testing.T) {
	d := Duration(90 * time.Second)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))
}
