package keepalive

//go:generate mockgen -destination=mock_keepalive.go -package=keepalive github.com/prakash-gist/mod-ping/pkg/keepalive Router,Dispatcher,SessionHooks,Features,Terminator

import (
	"context"

	"github.com/prakash-gist/mod-ping/pkg/models"
)

// Scope selects where a query handler is attached in the routing stack.
type Scope string

const (
	// ScopeSession handles queries addressed to a full client address.
	ScopeSession Scope = "session"
	// ScopeServer handles queries addressed to the bare domain.
	ScopeServer Scope = "server"
)

// QueryHandler answers one inbound query synchronously. It must not block on
// I/O; the reply is handed back to the dispatcher for delivery.
type QueryHandler func(iq *models.IQ) *models.IQ

// Router delivers an outbound stanza toward its target connection. Delivery
// is fire-and-forget from the caller's perspective.
type Router interface {
	Route(ctx context.Context, iq *models.IQ) error
}

// Dispatcher wires synchronous query handlers for a namespace into the
// hosting server's request-dispatch layer.
type Dispatcher interface {
	Register(domain, namespace string, scope Scope, policy DispatchPolicy, handler QueryHandler) error
	Unregister(domain, namespace string, scope Scope) error
}

// ConnectionListener receives connection-lifecycle notifications. The
// implementations enqueue; they never process inline.
type ConnectionListener interface {
	ConnectionOnline(id models.ClientID)
	ConnectionOffline(id models.ClientID)
}

// SessionHooks subscribes a listener to a domain's connect/disconnect events.
type SessionHooks interface {
	Subscribe(domain string, listener ConnectionListener) error
	Unsubscribe(domain string) error
}

// Features advertises a capability in the hosting server's discovery layer.
type Features interface {
	Advertise(domain, feature string) error
	Withdraw(domain, feature string) error
}

// Terminator closes a client connection. Only consulted when the timeout
// action is "kill".
type Terminator interface {
	Terminate(ctx context.Context, id models.ClientID, reason string) error
}
