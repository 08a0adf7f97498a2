package views

import (
	"fmt"
	"html/template"
	"strconv"

	"traindispatch/internal/dashboard"
	"traindispatch/internal/dashboard/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Telemetry renders each tracked train's velocity/acceleration readout as
// a text row, keyed by train id.
type Telemetry struct {
	trainIDs []int
	updates  <-chan []fastview.EleUpdate

	lastText map[int]string
}

// NewTelemetry builds a view over trainIDs (in display order), fed by the
// shared dashboard view-model.
func NewTelemetry(
	done <-chan struct{},
	vm <-chan dashboard.ViewModel,
	trainIDs []int,
) *Telemetry {
	t := &Telemetry{
		trainIDs: trainIDs,
		lastText: make(map[int]string),
	}
	t.updates = channerics.Convert(done, vm, t.onUpdate)
	return t
}

func (t *Telemetry) Updates() <-chan []fastview.EleUpdate {
	return t.updates
}

func telemetryEleID(train int) string { return "telemetry-" + strconv.Itoa(train) }

func (t *Telemetry) onUpdate(vm dashboard.ViewModel) []fastview.EleUpdate {
	byTrain := make(map[int]dashboard.TrainSnapshot, len(vm.Trains))
	for _, tr := range vm.Trains {
		byTrain[tr.Train] = tr
	}

	var out []fastview.EleUpdate
	for _, id := range t.trainIDs {
		tr, ok := byTrain[id]
		text := "idle"
		if ok {
			text = fmt.Sprintf("%s  v=%d um/tick  +%d um  accel_ticks=%d",
				tr.NodeName, tr.VelocityUMTick, tr.DistancePastNode, tr.AccelTicks)
		}
		if t.lastText[id] == text {
			continue
		}
		t.lastText[id] = text
		out = append(out, fastview.EleUpdate{
			EleId: telemetryEleID(id),
			Ops:   []fastview.Op{{Key: "textContent", Value: text}},
		})
	}
	return out
}

// Parse writes one row per tracked train into parent.
func (t *Telemetry) Parse(parent *template.Template) (string, error) {
	name := "telemetry"
	spec := fmt.Sprintf(`{{ define "%s" }}<div class="telemetry">`, name)
	for _, id := range t.trainIDs {
		spec += fmt.Sprintf(`<div>train %d: <span id="%s">idle</span></div>`, id, telemetryEleID(id))
	}
	spec += `</div>{{ end }}`

	if _, err := parent.Parse(spec); err != nil {
		return "", err
	}
	return name, nil
}
