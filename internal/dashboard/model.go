// Package dashboard serves a live, read-only view of the control plane:
// which train occupies which track node, and each tracked train's current
// kinematic telemetry, pushed to the browser over a websocket using the
// fastview builder/publisher pattern.
package dashboard

// TrainSnapshot is one train's state as surfaced to the dashboard, a
// flattened merge of location.TrainLocation plus a resolved node name (the
// dashboard has no business depending on track.NodeIndex internals).
type TrainSnapshot struct {
	Train            int
	NodeName         string
	DistancePastNode int
	VelocityUMTick   int
	AccelTicks       int
}

// Snapshot is the whole control plane's state at one instant, the raw
// DataModel fed into the dashboard's ViewBuilder.
type Snapshot struct {
	Trains []TrainSnapshot
}

// ViewModel is the shared, view-agnostic projection every dashboard view
// is built from.
type ViewModel struct {
	Trains []TrainSnapshot
}

// ToViewModel is the DataModel->ViewModel conversion passed to
// fastview.ViewBuilder.WithModel.
func ToViewModel(s Snapshot) ViewModel {
	return ViewModel{Trains: s.Trains}
}
