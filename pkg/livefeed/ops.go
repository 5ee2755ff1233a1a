package livefeed

import (
	"github.com/AimalShah/BarterDash-sub003/pkg/session"
)

// Ops adapts the client to the session manager's operation contract.
func (c *Client) Ops() session.Ops {
	return session.Ops{
		Connect:    c.Connect,
		Disconnect: c.Disconnect,
		Ping:       c.Ping,
	}
}
