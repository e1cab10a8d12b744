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

// ClientID is the opaque, comparable address of one client connection within
// a routing domain (a full resource-qualified address). The liveness core
// never constructs or parses it; the hosting server supplies it.
type ClientID string

// NamespacePing is the liveness-probe namespace (XEP-0199).
const NamespacePing = "urn:xmpp:ping"

// NamespaceStanzas qualifies standard stanza error conditions.
const NamespaceStanzas = "urn:ietf:params:xml:ns:xmpp-stanzas"

// IQType is the request/response kind of an IQ stanza.
type IQType string

const (
	IQGet    IQType = "get"
	IQSet    IQType = "set"
	IQResult IQType = "result"
	IQError  IQType = "error"
)

// Payload is the single child element of an IQ, identified by local name
// and namespace. The wire encoding is owned by the hosting server.
type Payload struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// StanzaError is a standard protocol-level error condition.
type StanzaError struct {
	Type      string `json:"type"`
	Condition string `json:"condition"`
}

const (
	ErrorTypeCancel                = "cancel"
	ConditionFeatureNotImplemented = "feature-not-implemented"
)

// IQ is the in-memory model of an info/query stanza.
type IQ struct {
	ID      string       `json:"id"`
	Type    IQType       `json:"type"`
	From    ClientID     `json:"from"`
	To      ClientID     `json:"to"`
	Payload *Payload     `json:"payload,omitempty"`
	Error   *StanzaError `json:"error,omitempty"`
}

// IsPing reports whether the stanza is a well-formed liveness probe:
// type "get" carrying exactly a ping child in the ping namespace.
func (iq *IQ) IsPing() bool {
	return iq.Type == IQGet &&
		iq.Payload != nil &&
		iq.Payload.Name == "ping" &&
		iq.Payload.Namespace == NamespacePing
}

// ResultFor builds the empty success reply to a probe, swapping the
// addressing and preserving the request id.
func ResultFor(req *IQ) *IQ {
	return &IQ{
		ID:   req.ID,
		Type: IQResult,
		From: req.To,
		To:   req.From,
	}
}

// ErrorFor builds the error reply to an unsupported query: the original
// payload is echoed back with a feature-not-implemented condition attached.
func ErrorFor(req *IQ) *IQ {
	return &IQ{
		ID:      req.ID,
		Type:    IQError,
		From:    req.To,
		To:      req.From,
		Payload: req.Payload,
		Error: &StanzaError{
			Type:      ErrorTypeCancel,
			Condition: ConditionFeatureNotImplemented,
		},
	}
}

// PingFrom builds an outbound liveness probe from the domain's server
// identity to the target connection.
func PingFrom(server, target ClientID, id string) *IQ {
	return &IQ{
		ID:   id,
		Type: IQGet,
		From: server,
		To:   target,
		Payload: &Payload{
			Name:      "ping",
			Namespace: NamespacePing,
		},
	}
}
