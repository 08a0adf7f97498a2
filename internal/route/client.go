package route

import (
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

// Client is the handle other servers use to talk to a running Route Server.
type Client struct {
	server *Server
	caller *kernel.Task
}

func (c *Client) send(req any) any {
	resp, err := c.caller.Send(c.server.task.ID(), req)
	if err != nil {
		panic(err)
	}
	return resp
}

// TaskID returns the server's own kernel task id, for name-server registration.
func (c *Client) TaskID() kernel.TaskID {
	return c.server.task.ID()
}

// LocationUpdate reports a train's freshly estimated kinematic state,
// triggering replanning if it has a destination.
func (c *Client) LocationUpdate(train int, node track.NodeIndex, distPastUM, velocity int, accelKind physics.AccelKind, commanded int) {
	c.send(locationUpdate{
		train:      train,
		node:       node,
		distPastUM: distPastUM,
		velocity:   velocity,
		accelKind:  accelKind,
		commanded:  commanded,
	})
}

// SetDestination assigns train a destination node, enabling route planning.
func (c *Client) SetDestination(train int, node track.NodeIndex) {
	c.send(setDestination{train: train, node: node})
}

// ClearDestination removes train's destination, halting replanning.
func (c *Client) ClearDestination(train int) {
	c.send(clearDestination{train: train})
}

// Subscribe registers ch to receive every published Route.
func (c *Client) Subscribe(ch chan Route) {
	c.send(subscribe{ch: ch})
}

// LastRoute synchronously returns the most recently accepted route.
func (c *Client) LastRoute(train int) Route {
	return c.send(getLastRoute{train: train}).(Route)
}
