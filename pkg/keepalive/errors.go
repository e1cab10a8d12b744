package keepalive

import "errors"

var (
	ErrDomainAlreadyStarted = errors.New("domain already has a keepalive coordinator")
	ErrUnknownDomain        = errors.New("no keepalive coordinator for domain")
	ErrTerminatorRequired   = errors.New("timeout_action \"kill\" requires a connection terminator")
	errDispatcherRequired   = errors.New("dispatcher collaborator is required")
	errRouterRequired       = errors.New("router collaborator is required when send_probes is enabled")
	errHooksRequired        = errors.New("session hooks collaborator is required when send_probes is enabled")
)
