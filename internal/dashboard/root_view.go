package dashboard

import (
	"context"
	"html/template"
	"time"

	"traindispatch/internal/dashboard/fastview"
	"traindispatch/internal/dashboard/views"

	channerics "github.com/niceyeti/channerics/channels"
)

// rootView is the dashboard's single page: the container for every view
// component and the channel wiring between them.
type rootView struct {
	components []fastview.ViewComponent
	updates    <-chan []fastview.EleUpdate
}

// newRootView builds every dashboard view over a common ViewModel stream.
func newRootView(
	ctx context.Context,
	snapshots <-chan Snapshot,
	nodeNames []string,
	trainIDs []int,
) (*rootView, error) {
	components, err := fastview.NewViewBuilder[Snapshot, ViewModel]().
		WithContext(ctx).
		WithModel(snapshots, ToViewModel).
		WithView(func(done <-chan struct{}, vm <-chan ViewModel) fastview.ViewComponent {
			return views.NewTrackOccupancy(done, vm, nodeNames)
		}).
		WithView(func(done <-chan struct{}, vm <-chan ViewModel) fastview.ViewComponent {
			return views.NewTelemetry(done, vm, trainIDs)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &rootView{
		components: components,
		updates:    fanIn(ctx.Done(), components),
	}, nil
}

// Updates returns the aggregated, rate-limited ele-update stream for every
// view component on the page.
func (rv *rootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the page template, nesting every view component's own
// template underneath it.
func (rv *rootView) Parse(parent *template.Template) (name string, err error) {
	rt := parent.Funcs(template.FuncMap{})

	var childNames []string
	for _, c := range rv.components {
		tname, err := c.Parse(rt)
		if err != nil {
			return "", err
		}
		childNames = append(childNames, tname)
	}

	body := ""
	for _, tname := range childNames {
		body += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	index := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
	<head>
		<link rel="icon" href="data:,">
		<style>
			.track { display: flex; flex-wrap: wrap; gap: 4px; }
			.node-empty { padding: 4px 8px; border: 1px solid #ccc; }
			.node-occupied { padding: 4px 8px; border: 1px solid #000; background: #ffd; }
		</style>
		<script>
			const ws = new WebSocket("ws://" + location.host + "/ws");
			ws.onmessage = function (event) {
				const items = JSON.parse(event.data);
				for (const update of items) {
					const ele = document.getElementById(update.EleId);
					if (!ele) continue;
					for (const op of update.Ops) {
						if (op.Key === "textContent") {
							ele.textContent = op.Value;
						} else {
							ele.setAttribute(op.Key, op.Value);
						}
					}
				}
			};
		</script>
	</head>
	<body>` + body + `</body>
	</html>
	{{ end }}
	`
	if _, err = rt.Parse(index); err != nil {
		return "", err
	}
	return name, nil
}

// fanIn merges every view's ele-update stream and batches updates arriving
// within the same window, overwriting stale values for a given ele-id so
// only the latest is sent.
func fanIn(done <-chan struct{}, components []fastview.ViewComponent) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(components))
	for i, c := range components {
		inputs[i] = c.Updates()
	}
	return batchify(done, channerics.Merge(done, inputs...), 20*time.Millisecond)
}

func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	out := make(chan []fastview.EleUpdate)

	go func() {
		defer close(out)
		pending := map[string]fastview.EleUpdate{}
		last := time.Now()
		for updates := range channerics.OrDone(done, source) {
			for _, u := range updates {
				pending[u.EleId] = u
			}
			if time.Since(last) > rate && len(updates) > 0 {
				vals := make([]fastview.EleUpdate, 0, len(pending))
				for _, v := range pending {
					vals = append(vals, v)
				}
				select {
				case out <- vals:
					pending = map[string]fastview.EleUpdate{}
					last = time.Now()
				case <-done:
					return
				}
			}
		}
	}()

	return out
}
