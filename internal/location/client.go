package location

import (
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

// Client is the handle other servers and notifiers use to talk to a
// running location Server.
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

// Tick drives one integration step; call this once per 20ms from a
// notifier built on collab.Clock (or channerics.NewTicker).
func (c *Client) Tick() {
	c.send(velocityUpdate{})
}

// AttributedSensor reports an authoritative position fix from Attribution.
func (c *Client) AttributedSensor(train int, sensor track.NodeIndex, tTrip uint32) {
	c.send(attributedSensorUpd{train: train, sensor: sensor, tTrip: tTrip})
}

// SpeedUpdate reports a newly commanded speed, scheduling an acceleration
// regime.
func (c *Client) SpeedUpdate(train, speed int) {
	c.send(speedUpdate{train: train, speed: speed})
}

// DirectionUpdate reports a newly commanded direction.
func (c *Client) DirectionUpdate(train int, dir physics.Direction) {
	c.send(directionUpdate{train: train, dir: dir})
}

// GetLocation synchronously queries train's current estimate.
func (c *Client) GetLocation(train int) TrainLocation {
	return c.send(getLocation{train: train}).(TrainLocation)
}

// Subscribe registers ch to receive every published TrainLocation update.
func (c *Client) Subscribe(ch chan TrainLocation) {
	c.send(subscribe{ch: ch})
}
