/*
Package stop implements the Stop server of spec.md §4.6: given a target
stop location set via StopTrainAtLocation, it watches RouteUpdate events
and issues set_speed(train, 0) at the moment physics says the train will
coast exactly to that location, then reports DestinationReached once the
train has come to rest.

Sleeping until the train physically stops is offloaded to a small fixed
worker pool (MAX_TRACKED tasks, round-robin dispatched) so the server's
main receive loop never blocks in delay, mirroring the fan-out/fan-in
worker shape the teacher uses to keep its estimator loop from stalling on
slow producers.
*/
package stop

import (
	"fmt"

	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/physics"
	"traindispatch/internal/route"
)

// MaxTracked bounds both the number of simultaneously tracked trains and
// the size of the sleep-worker pool, per spec.md's MAX_TRACKED=6.
const MaxTracked = 6

// LatencyTicks is the controller-to-loco command delay folded into the
// stopping-distance projection.
const LatencyTicks = physics.AverageTrainCommandLatency

// DestinationReached is published once a train has come to rest at its
// requested stop location.
type DestinationReached struct {
	Train    int
	Location track.NodeIndex
}

type clock interface {
	Time() uint32
	Delay(d uint32)
}

type calibration interface {
	For(train physics.TrainID) physics.Table
}

type target struct {
	node  track.NodeIndex
	valid bool
	armed bool // set_speed(0) already issued for this target
}

// Server owns per-train stop targets and dispatches the sleep-then-notify
// work to its worker pool.
type Server struct {
	trainBus hw.TrainBus
	calib    calibration
	clk      clock

	targets map[int]*target
	workers []chan sleepJob
	next    int

	subscribers []chan DestinationReached

	task *kernel.Task
}

type sleepJob struct {
	train    int
	ticks    uint32
	location track.NodeIndex
}

func New(trainBus hw.TrainBus, calib calibration, clk clock) *Server {
	return &Server{
		trainBus: trainBus,
		calib:    calib,
		clk:      clk,
		targets:  make(map[int]*target),
	}
}

func (s *Server) Start(k *kernel.Kernel, priority kernel.Priority) *Client {
	s.task = k.Create(priority, s.run)

	for i := 0; i < MaxTracked; i++ {
		jobs := make(chan sleepJob, 1)
		s.workers = append(s.workers, jobs)
		k.Create(priority, s.worker(jobs))
	}

	return &Client{server: s, caller: k.Create(priority, func(*kernel.Task) {})}
}

// worker returns a kernel task body that waits for sleep jobs and, after
// the train has had time to coast to rest, reports back to the server.
func (s *Server) worker(jobs chan sleepJob) func(t *kernel.Task) {
	return func(t *kernel.Task) {
		for job := range jobs {
			s.clk.Delay(job.ticks)
			if _, err := t.Send(s.task.ID(), workerDone{train: job.train, location: job.location}); err != nil {
				return
			}
		}
	}
}

type (
	stopAt struct {
		train    int
		location track.NodeIndex
	}
	routeUpdate struct {
		train         int
		path          []route.PathNode
		distPastUM    int
		velocity      int
		accelKind     physics.AccelKind
		commanded     int
		totalDistance int
	}
	workerDone struct {
		train    int
		location track.NodeIndex
	}
	subscribe struct{ ch chan DestinationReached }
)

func (s *Server) run(t *kernel.Task) {
	for {
		_, req, reply := t.Receive()
		switch m := req.(type) {
		case stopAt:
			s.targets[m.train] = &target{node: m.location, valid: true}
			reply.Reply(nil)
		case routeUpdate:
			s.onRouteUpdate(m)
			reply.Reply(nil)
		case workerDone:
			s.onWorkerDone(m)
			reply.Reply(nil)
		case subscribe:
			s.subscribers = append(s.subscribers, m.ch)
			reply.Reply(nil)
		default:
			panic(fmt.Sprintf("stop: unknown message %T", req))
		}
	}
}

// onRouteUpdate implements §4.6's per-RouteUpdate stop decision.
func (s *Server) onRouteUpdate(m routeUpdate) {
	tgt, ok := s.targets[m.train]
	if !ok || !tgt.valid || tgt.armed {
		return
	}

	tbl := s.calib.For(physics.TrainID(m.train))
	var a int
	if m.accelKind == physics.Decelerating || m.accelKind == physics.Stopping {
		a = tbl.DecelCentiUMPerTick2(m.commanded)
	} else {
		a = tbl.AccelCentiUMPerTick2(m.commanded)
	}
	if a <= 0 {
		a = 1
	}

	vAfterLatency := integrateClosedForm(m.velocity, a, m.accelKind, LatencyTicks)
	// Braking to rest ramps down toward notch 0.
	decel := tbl.DecelCentiUMPerTick2(0)
	if decel <= 0 {
		decel = 1
	}
	dir := physics.Forward
	stoppingDistance := physics.StoppingDistanceUM(vAfterLatency, decel, dir)

	distanceInLatency := distanceTravelledOver(m.velocity, a, m.accelKind, LatencyTicks)
	remaining := m.totalDistance - m.distPastUM - distanceInLatency

	if remaining < m.totalDistance && remaining < stoppingDistance {
		s.trainBus.SetSpeed(m.train, 0)
		tgt.armed = true
		tStop := physics.StopTimeTicks(vAfterLatency, decel)
		s.dispatch(sleepJob{train: m.train, ticks: uint32(tStop), location: tgt.node})
	}
}

// integrateClosedForm projects velocity forward dt ticks under the current
// acceleration regime, clamped so it never overshoots zero or reverses.
func integrateClosedForm(v, a int, kind physics.AccelKind, dt int) int {
	if kind == physics.Steady || a <= 0 {
		return v
	}
	dv := dt * a / 100
	if kind == physics.Accelerating || kind == physics.AccelFromStop {
		return v + dv
	}
	next := v - dv
	if next < 0 {
		return 0
	}
	return next
}

// distanceTravelledOver closed-form integrates position over dt ticks:
// dx = v*dt + a*dt^2/200 (deceleration flips sign), matching the teacher's
// "project forward, don't simulate tick by tick" style for workers that
// must stay off the hot path.
func distanceTravelledOver(v, a int, kind physics.AccelKind, dt int) int {
	dx := v * dt
	if kind == physics.Steady || a <= 0 {
		return dx
	}
	term := (a * dt * dt) / 200
	if kind == physics.Accelerating || kind == physics.AccelFromStop {
		return dx + term
	}
	dx -= term
	if dx < 0 {
		dx = 0
	}
	return dx
}

// dispatch round-robins job onto the worker pool.
func (s *Server) dispatch(job sleepJob) {
	s.workers[s.next] <- job
	s.next = (s.next + 1) % len(s.workers)
}

func (s *Server) onWorkerDone(m workerDone) {
	delete(s.targets, m.train)
	evt := DestinationReached{Train: m.train, Location: m.location}
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
