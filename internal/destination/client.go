package destination

import (
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
)

// Client is the handle other servers use to talk to a running Destination
// Server.
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

// DestinationOnce sends train to node a single time.
func (c *Client) DestinationOnce(train int, node track.NodeIndex) {
	c.send(destinationOnce{train: train, node: node})
}

// DestinationForever sends train to an endless sequence of random targets.
func (c *Client) DestinationForever(train int) {
	c.send(destinationForever{train: train})
}

// AttributedSensor reports that train has tripped sensor, becoming
// attributable.
func (c *Client) AttributedSensor(train int, sensor track.NodeIndex) {
	c.send(attributedSensor{train: train, sensor: sensor})
}

// DestinationReached reports that train has come to rest at location.
func (c *Client) DestinationReached(train int, location track.NodeIndex) {
	c.send(destinationReached{train: train, location: location})
}
