/*
Package location implements the Location server of spec.md §4.3: per-train
position/velocity/acceleration estimation from a 20ms integration tick plus
sensor corrections, published continuously to subscribers (Route, the
dashboard) and available synchronously via GetLocation.
*/
package location

import (
	"fmt"

	"traindispatch/internal/atomicfloat"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
)

// TickMS is the integration cadence (spec.md §4.3: "self-tick every 20 ms").
const TickMS = 20

// AverageTrainCommandLatency is the controller-to-loco delay absorbed
// before a newly scheduled acceleration regime takes effect.
const AverageTrainCommandLatency = physics.AverageTrainCommandLatency

// emaAlpha is the sensor-correction exponential-moving-average weight.
const emaAlpha = 5

// TrainLocation is published on every integration tick and on demand.
type TrainLocation struct {
	Train            int
	Node             track.NodeIndex
	DistancePastNode int // µm
	VelocityUMTick   int
	AccelTicks       int
	AccelKind        physics.AccelKind
	CommandedSpeed   int
}

// trainState is the server-private per-train kinematic estimate.
// Velocity/DistancePastNode are held in lock-free atomics, grounded on the
// teacher's atomic_float package; this server's own loop is their only
// reader and writer, and other servers get the values from published
// TrainLocation updates or GetLocation.
type trainState struct {
	id               int
	node             track.NodeIndex
	lastArrivalTime  uint32
	lastUpdateTime   uint32
	direction        physics.Direction
	accelKind        physics.AccelKind
	accelTicksRemain int
	accelStartTime   uint32
	commandedSpeed   int

	velocity   *atomicfloat.Float64 // µm/tick
	distanceUM *atomicfloat.Float64
}

type switchPos interface {
	Func() func(sw int) track.Direction
}

type clock interface{ Time() uint32 }

// Server owns all location state and runs as a single kernel task.
type Server struct {
	graph    *track.Graph
	switches switchPos
	calib    *physics.Calibration
	clk      clock

	trains      map[int]*trainState
	subscribers []chan TrainLocation

	task *kernel.Task
}

// New constructs a location server. Call Start to launch its receive loop.
func New(graph *track.Graph, switches switchPos, calib *physics.Calibration, clk clock) *Server {
	return &Server{
		graph:    graph,
		switches: switches,
		calib:    calib,
		clk:      clk,
		trains:   make(map[int]*trainState),
	}
}

func (s *Server) Start(k *kernel.Kernel, priority kernel.Priority) *Client {
	s.task = k.Create(priority, s.run)
	return &Client{server: s, caller: k.Create(priority, func(*kernel.Task) {})}
}

type (
	velocityUpdate      struct{}
	attributedSensorUpd struct {
		train  int
		sensor track.NodeIndex
		tTrip  uint32
	}
	speedUpdate struct{ train, speed int }
	directionUpdate struct {
		train int
		dir   physics.Direction
	}
	getLocation struct{ train int }
	subscribe   struct{ ch chan TrainLocation }
)

func (s *Server) run(t *kernel.Task) {
	for {
		_, req, reply := t.Receive()
		switch m := req.(type) {
		case velocityUpdate:
			s.integrate()
			reply.Reply(nil)
		case attributedSensorUpd:
			s.onAttributedSensor(m.train, m.sensor, m.tTrip)
			reply.Reply(nil)
		case speedUpdate:
			s.onSpeedUpdate(m.train, m.speed)
			reply.Reply(nil)
		case directionUpdate:
			s.onDirectionUpdate(m.train, m.dir)
			reply.Reply(nil)
		case getLocation:
			reply.Reply(s.snapshot(m.train))
		case subscribe:
			s.subscribers = append(s.subscribers, m.ch)
			reply.Reply(nil)
		default:
			panic(fmt.Sprintf("location: unknown message %T", req))
		}
	}
}

func (s *Server) ensure(train int) *trainState {
	ts, ok := s.trains[train]
	if !ok {
		ts = &trainState{
			id:         train,
			node:       track.Invalid,
			velocity:   atomicfloat.New(0),
			distanceUM: atomicfloat.New(0),
		}
		s.trains[train] = ts
	}
	return ts
}

func (s *Server) snapshot(train int) TrainLocation {
	ts, ok := s.trains[train]
	if !ok {
		return TrainLocation{Train: train, Node: track.Invalid}
	}
	return TrainLocation{
		Train:            train,
		Node:             ts.node,
		DistancePastNode: int(ts.distanceUM.Read()),
		VelocityUMTick:   int(ts.velocity.Read()),
		AccelTicks:       ts.accelTicksRemain,
		AccelKind:        ts.accelKind,
		CommandedSpeed:   ts.commandedSpeed,
	}
}

// integrate runs the per-tick step of spec.md §4.3 for every tracked train.
func (s *Server) integrate() {
	now := s.clk.Time()
	for _, ts := range s.trains {
		dt := int(now - ts.lastUpdateTime)
		if ts.lastUpdateTime == 0 {
			ts.lastUpdateTime = now
			continue
		}
		if dt <= 0 {
			continue
		}

		if ts.accelKind != physics.Steady && now >= ts.accelStartTime && ts.accelTicksRemain > 0 {
			spent := dt
			if spent > ts.accelTicksRemain {
				spent = ts.accelTicksRemain
			}
			tbl := s.calib.For(physics.TrainID(ts.id))
			var a int
			vTarget := tbl.SteadyVelocityUMPerTick(ts.commandedSpeed)
			if ts.accelKind == physics.Decelerating || ts.accelKind == physics.Stopping {
				a = tbl.DecelCentiUMPerTick2(ts.commandedSpeed)
			} else {
				a = tbl.AccelCentiUMPerTick2(ts.commandedSpeed)
			}
			v := int(ts.velocity.Read())
			next := physics.IntegrateVelocity(v, vTarget, spent, a, ts.accelKind)
			ts.velocity.Set(float64(next))
			ts.accelTicksRemain -= spent
			if ts.accelTicksRemain <= 0 {
				ts.velocity.Set(float64(vTarget))
				ts.accelKind = physics.Steady
			}
		}

		v := ts.velocity.Read()
		if v < 0 {
			v = 0
			ts.velocity.Set(0)
		}
		ts.distanceUM.Add(float64(dt) * v)
		ts.lastUpdateTime = now
		s.publish(ts)
	}
}

func (s *Server) publish(ts *trainState) {
	evt := s.snapshot(ts.id)
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// onAttributedSensor implements §4.3's sensor-correction and re-anchor step.
func (s *Server) onAttributedSensor(train int, sensor track.NodeIndex, tTrip uint32) {
	ts := s.ensure(train)
	now := s.clk.Time()

	if ts.node != track.Invalid && ts.accelKind == physics.Steady && ts.velocity.Read() > 0 {
		dx, err := s.graph.DistanceMM(ts.node, sensor, s.switches.Func())
		if err == nil && tTrip > ts.lastArrivalTime {
			dt := int(tTrip - ts.lastArrivalTime)
			vSample := float64(dx*1000) / float64(dt)
			v := ts.velocity.Read()
			ts.velocity.Set((emaAlpha*vSample + (100-emaAlpha)*v) / 100)
		}
	}

	ts.node = sensor
	ts.lastArrivalTime = tTrip
	ts.lastUpdateTime = now
	ts.distanceUM.Set(float64(now-tTrip) * ts.velocity.Read())
	s.publish(ts)
}

func (s *Server) onSpeedUpdate(train, newSpeed int) {
	ts := s.ensure(train)
	tbl := s.calib.For(physics.TrainID(train))
	vTarget := tbl.SteadyVelocityUMPerTick(newSpeed)
	v := int(ts.velocity.Read())

	ts.commandedSpeed = newSpeed
	ts.accelKind = physics.ClassifyRegime(v, vTarget)

	var a int
	switch ts.accelKind {
	case physics.Decelerating, physics.Stopping:
		a = tbl.DecelCentiUMPerTick2(newSpeed)
	default:
		a = tbl.AccelCentiUMPerTick2(newSpeed)
	}
	ts.accelTicksRemain = physics.AccelTicksRemaining(v, vTarget, a)
	ts.accelStartTime = s.clk.Time() + AverageTrainCommandLatency
}

// onDirectionUpdate re-anchors the reference node as in §4.2's swap.
func (s *Server) onDirectionUpdate(train int, dir physics.Direction) {
	ts := s.ensure(train)
	ts.direction = dir
	if ts.node != track.Invalid {
		ts.node = s.graph.NodeAt(ts.node).Reverse
	}
}
