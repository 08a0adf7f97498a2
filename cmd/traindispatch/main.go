/*
Traindispatch is the control-plane entry point: it loads the static track
layout and per-train configuration, boots the microkernel and its
collaborators, wires the Attribution -> Location -> Route ->
Conductor/Stop/Destination pipeline together with the notifier pattern,
and serves the live dashboard until interrupted.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"traindispatch/internal/attribution"
	"traindispatch/internal/collab"
	"traindispatch/internal/conductor"
	"traindispatch/internal/config"
	"traindispatch/internal/dashboard"
	"traindispatch/internal/destination"
	"traindispatch/internal/hw"
	"traindispatch/internal/hw/track"
	"traindispatch/internal/kernel"
	"traindispatch/internal/kernel/notify"
	"traindispatch/internal/location"
	"traindispatch/internal/physics"
	"traindispatch/internal/route"
	"traindispatch/internal/stop"
)

var configPath = flag.String("config", "./config.yaml", "path to the control plane's YAML config")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromYaml(*configPath)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	graph, err := track.Load(cfg.TrackName())
	if err != nil {
		return fmt.Errorf("main: loading track: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	k := kernel.New()
	nameServer := collab.NewNameServer()
	clk := collab.NewClock()
	defer clk.Stop()

	switches := hw.NewSwitchState(track.DirStraight)
	bus := hw.NewSimBus(switches)
	calib := physics.NewCalibration()
	for _, tc := range cfg.Trains {
		if tc.Calibration != "" {
			calib.Register(physics.TrainID(tc.ID), calib.For(physics.TrainID(tc.ID)))
		}
	}

	const priority kernel.Priority = 10

	attrSrv := attribution.New(graph, switches, clk)
	attrClient := attrSrv.Start(k, priority)
	nameServer.RegisterAs("attribution", attrClient.TaskID())

	locSrv := location.New(graph, switches, calib, clk)
	locClient := locSrv.Start(k, priority)
	nameServer.RegisterAs("location", locClient.TaskID())

	routeSrv := route.New(graph, switches, calib, clk)
	routeClient := routeSrv.Start(k, priority)
	nameServer.RegisterAs("route", routeClient.TaskID())

	conductorSrv := conductor.New(graph, bus, bus, calib, attrClient, locClient)
	conductorClient := conductorSrv.Start(k, priority)
	nameServer.RegisterAs("conductor", conductorClient.TaskID())

	stopSrv := stop.New(bus, calib, clk)
	stopClient := stopSrv.Start(k, priority)
	nameServer.RegisterAs("stop", stopClient.TaskID())

	destSrv := destination.New(graph, routeClient, stopClient, bus, clk.Time)
	destClient := destSrv.Start(k, priority)
	nameServer.RegisterAs("destination", destClient.TaskID())

	wirePipeline(ctx, attrClient, locClient, routeClient, conductorClient, stopClient, destClient)

	// Location integrates on a 20 ms self-tick: TickMS/10 clock ticks of
	// 10 ms each.
	go func() {
		for ctx.Err() == nil {
			clk.Delay(location.TickMS / 10)
			locClient.Tick()
		}
	}()

	if cfg.Dashboard.Addr != "" {
		dashSrv, err := buildDashboard(ctx, cfg, graph, locClient)
		if err != nil {
			return fmt.Errorf("main: building dashboard: %w", err)
		}
		go func() {
			if err := dashSrv.ListenAndServe(); err != nil {
				fmt.Fprintln(os.Stderr, "dashboard:", err)
			}
		}()
	}

	for _, tc := range cfg.Trains {
		destClient.DestinationForever(tc.ID)
	}

	<-ctx.Done()
	shutdown(cfg, bus)
	return nil
}

// shutdown stops every configured locomotive before the run loop exits,
// per the design notes' shutdown-hook requirement.
func shutdown(cfg *config.Config, bus *hw.SimBus) {
	for _, tc := range cfg.Trains {
		_ = bus.SetSpeed(tc.ID, 0)
	}
	_ = bus.Stop()
}

// wirePipeline connects each server's publish channel to the next
// server's client calls using the notifier pattern: a dedicated goroutine
// per hop that awaits the upstream event and issues the downstream call,
// preserving the spec's "sensor -> attribution -> location -> route ->
// conductor/stop" linear per-train ordering guarantee.
func wirePipeline(
	ctx context.Context,
	attrClient *attribution.Client,
	locClient *location.Client,
	routeClient *route.Client,
	conductorClient *conductor.Client,
	stopClient *stop.Client,
	destClient *destination.Client,
) {
	done := ctx.Done()

	attributedSensors := make(chan attribution.AttributedSensor, 64)
	attrClient.Subscribe(attributedSensors)
	notify.Notifier(done, attributedSensors, func(ev attribution.AttributedSensor) {
		locClient.AttributedSensor(ev.Train, ev.Sensor, ev.TimeTripped)
		destClient.AttributedSensor(ev.Train, ev.Sensor)
	})

	// lastRoute/lastKinematics let the Stop server's combined RouteUpdate
	// call be re-issued on whichever of the two upstream events (a fresh
	// route or a fresh kinematic estimate) arrives most recently, since
	// the two are published independently but Stop needs both together.
	var mu sync.Mutex
	lastRoute := make(map[int]route.Route)

	notifyStop := func(train int, distPastUM, velocity int, accelKind physics.AccelKind, commanded int) {
		mu.Lock()
		r, ok := lastRoute[train]
		mu.Unlock()
		if !ok {
			return
		}
		stopClient.RouteUpdate(r, distPastUM, velocity, accelKind, commanded)
	}

	locationUpdates := make(chan location.TrainLocation, 64)
	locClient.Subscribe(locationUpdates)
	notify.Notifier(done, locationUpdates, func(loc location.TrainLocation) {
		routeClient.LocationUpdate(loc.Train, loc.Node, loc.DistancePastNode, loc.VelocityUMTick, loc.AccelKind, loc.CommandedSpeed)
		conductorClient.KinematicsUpdate(loc.Train, loc.Node, loc.DistancePastNode, loc.VelocityUMTick, loc.AccelKind, loc.CommandedSpeed)
		notifyStop(loc.Train, loc.DistancePastNode, loc.VelocityUMTick, loc.AccelKind, loc.CommandedSpeed)
	})

	routeUpdates := make(chan route.Route, 64)
	routeClient.Subscribe(routeUpdates)
	notify.Notifier(done, routeUpdates, func(r route.Route) {
		mu.Lock()
		lastRoute[r.Train] = r
		mu.Unlock()
		conductorClient.RouteUpdate(r)
		loc := locClient.GetLocation(r.Train)
		notifyStop(r.Train, loc.DistancePastNode, loc.VelocityUMTick, loc.AccelKind, loc.CommandedSpeed)
	})

	destinationReached := make(chan stop.DestinationReached, 64)
	stopClient.Subscribe(destinationReached)
	notify.Notifier(done, destinationReached, func(ev stop.DestinationReached) {
		destClient.DestinationReached(ev.Train, ev.Location)
	})
}

func buildDashboard(
	ctx context.Context,
	cfg *config.Config,
	graph *track.Graph,
	locClient *location.Client,
) (*dashboard.Server, error) {
	var nodeNames []string
	for i := range graph.Nodes {
		n := graph.NodeAt(track.NodeIndex(i))
		if n.Kind == track.KindSensor {
			nodeNames = append(nodeNames, n.Name)
		}
	}

	var trainIDs []int
	for _, tc := range cfg.Trains {
		trainIDs = append(trainIDs, tc.ID)
	}

	dashUpdates := make(chan location.TrainLocation, 64)
	locClient.Subscribe(dashUpdates)

	resolveNode := func(loc location.TrainLocation) string {
		if loc.Node == track.Invalid {
			return ""
		}
		return graph.NodeAt(loc.Node).Name
	}

	return dashboard.New(ctx, cfg.Dashboard.Addr, dashUpdates, resolveNode, nodeNames, trainIDs)
}
