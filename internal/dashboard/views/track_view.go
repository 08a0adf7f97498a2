// Package views holds the dashboard's concrete fastview.ViewComponent
// implementations.
package views

import (
	"fmt"
	"html/template"
	"strconv"

	"traindispatch/internal/dashboard"
	"traindispatch/internal/dashboard/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// TrackOccupancy renders one cell per named track node, showing which
// train (if any) currently occupies it.
type TrackOccupancy struct {
	nodeNames []string
	updates   <-chan []fastview.EleUpdate

	lastOccupant map[string]string
}

// NewTrackOccupancy builds a view over nodeNames (the track's sensor node
// names, in display order), fed by the shared dashboard view-model.
func NewTrackOccupancy(
	done <-chan struct{},
	vm <-chan dashboard.ViewModel,
	nodeNames []string,
) *TrackOccupancy {
	t := &TrackOccupancy{
		nodeNames:    nodeNames,
		lastOccupant: make(map[string]string),
	}
	t.updates = channerics.Convert(done, vm, t.onUpdate)
	return t
}

func (t *TrackOccupancy) Updates() <-chan []fastview.EleUpdate {
	return t.updates
}

func eleID(node string) string { return "node-" + node }

func (t *TrackOccupancy) onUpdate(vm dashboard.ViewModel) []fastview.EleUpdate {
	occupant := make(map[string]string, len(vm.Trains))
	for _, tr := range vm.Trains {
		occupant[tr.NodeName] = strconv.Itoa(tr.Train)
	}

	var out []fastview.EleUpdate
	for _, name := range t.nodeNames {
		val := occupant[name]
		if t.lastOccupant[name] == val {
			continue
		}
		t.lastOccupant[name] = val
		cls := "node-empty"
		if val != "" {
			cls = "node-occupied"
		}
		out = append(out, fastview.EleUpdate{
			EleId: eleID(name),
			Ops: []fastview.Op{
				{Key: "textContent", Value: val},
				{Key: "class", Value: cls},
			},
		})
	}
	return out
}

// Parse writes one <div> per track node into parent, returning the
// template name root_view nests it under.
func (t *TrackOccupancy) Parse(parent *template.Template) (string, error) {
	name := "trackoccupancy"
	spec := fmt.Sprintf(`{{ define "%s" }}<div class="track">`, name)
	for _, n := range t.nodeNames {
		spec += fmt.Sprintf(`<div id="%s" class="node-empty">%s</div>`, eleID(n), n)
	}
	spec += `</div>{{ end }}`

	if _, err := parent.Parse(spec); err != nil {
		return "", err
	}
	return name, nil
}
