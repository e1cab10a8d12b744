package keepalive

import (
	"github.com/prakash-gist/mod-ping/pkg/models"
	"github.com/prakash-gist/mod-ping/pkg/timerreg"
)

// event is the tagged union consumed by the coordinator loop. Every state
// transition, including timer fires, arrives through this single queue.
type event interface{ isEvent() }

type onlineEvent struct{ id models.ClientID }

type offlineEvent struct{ id models.ClientID }

type fireEvent struct{ id models.ClientID }

type replyEvent struct{ iq *models.IQ }

type expireEvent struct {
	id    models.ClientID
	reqID string
}

type listEvent struct {
	resp chan map[models.ClientID]*timerreg.Handle
}

type stopEvent struct{}

func (onlineEvent) isEvent()  {}
func (offlineEvent) isEvent() {}
func (fireEvent) isEvent()    {}
func (replyEvent) isEvent()   {}
func (expireEvent) isEvent()  {}
func (listEvent) isEvent()    {}
func (stopEvent) isEvent()    {}
