package stop

import (
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
	"traindispatch/internal/route"
)

// Client is the handle other servers use to talk to a running Stop Server.
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

// StopTrainAtLocation arms train to be stopped once it coasts to location.
func (c *Client) StopTrainAtLocation(train int, location track.NodeIndex) {
	c.send(stopAt{train: train, location: location})
}

// RouteUpdate reports a freshly published Route plus the train's current
// kinematic state, driving the stop decision.
func (c *Client) RouteUpdate(r route.Route, distPastUM, velocity int, accelKind physics.AccelKind, commanded int) {
	c.send(routeUpdate{
		train:         r.Train,
		path:          r.Path,
		distPastUM:    distPastUM,
		velocity:      velocity,
		accelKind:     accelKind,
		commanded:     commanded,
		totalDistance: r.TotalDistance,
	})
}

// Subscribe registers ch to receive every DestinationReached event.
func (c *Client) Subscribe(ch chan DestinationReached) {
	c.send(subscribe{ch: ch})
}
