package attribution

import (
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

// Client is the handle other servers and notifiers use to talk to a
// running attribution Server; it owns a private kernel task purely to have
// an identity to send from (servers never share a caller task).
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

// SensorChanged reports a raw rising edge from the sensor-delta task.
func (c *Client) SensorChanged(sensor track.NodeIndex) {
	c.send(sensorChanged{sensor: sensor})
}

// SpeedChanged reports a train-server speed change.
func (c *Client) SpeedChanged(train, speed int) {
	c.send(speedChanged{train: train, speed: speed})
}

// DirectionChanged reports a train-server direction change.
func (c *Client) DirectionChanged(train int, dir physics.Direction) {
	c.send(directionChanged{train: train, dir: dir})
}

// SwitchChanged reports a switch-server position change.
func (c *Client) SwitchChanged(sw int) {
	c.send(switchChanged{sw: sw})
}

// Subscribe registers ch to receive every successful attribution for the
// life of the server, mirroring location.Client.Subscribe. Registration
// completes synchronously, so an attribution caused by a SensorChanged
// issued afterward is delivered on ch, unless ch's buffer is full, in
// which case that event is dropped for ch.
func (c *Client) Subscribe(ch chan AttributedSensor) {
	c.send(subscribe{ch: ch})
}

// AttributedSensorAwait subscribes a fresh one-shot channel and blocks until
// the next attribution is published on it.
func (c *Client) AttributedSensorAwait() AttributedSensor {
	ch := make(chan AttributedSensor, 1)
	c.Subscribe(ch)
	return <-ch
}

// GetTrackedTrains returns a snapshot of all currently tracked entries.
func (c *Client) GetTrackedTrains() []Entry {
	return c.send(getTrackedTrains{}).([]Entry)
}

// NextExpectedNode returns train's next expected sensor node, or
// track.Invalid if untracked or at a dead end.
func (c *Client) NextExpectedNode(train int) track.NodeIndex {
	return c.send(nextExpectedNodeQ{train: train}).(track.NodeIndex)
}
