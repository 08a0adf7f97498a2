package conductor

import (
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
	"traindispatch/internal/route"
)

// Client is the handle other servers use to talk to a running Conductor.
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

// RouteUpdate reports a freshly published Route for actuation.
func (c *Client) RouteUpdate(r route.Route) {
	c.send(routeUpdate{train: r.Train, path: r.Path, performsRev: r.PerformsRev})
}

// KinematicsUpdate reports a train's freshly estimated kinematic state,
// used to compute the switch-throw timing window.
func (c *Client) KinematicsUpdate(train int, node track.NodeIndex, distPastUM, velocity int, accelKind physics.AccelKind, commanded int) {
	c.send(kinematicsUpdate{
		train:      train,
		node:       node,
		distPastUM: distPastUM,
		velocity:   velocity,
		accelKind:  accelKind,
		commanded:  commanded,
	})
}

// SpeedAck reports that a commanded speed change took effect, decrementing
// the reverse-in-progress counter per §4.5.
func (c *Client) SpeedAck(train int) {
	c.send(speedAck{train: train})
}
