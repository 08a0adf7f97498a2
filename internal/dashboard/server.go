package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"traindispatch/internal/dashboard/fastview"
	"traindispatch/internal/location"
)

// Server serves the dashboard's single page and its websocket update
// stream. It holds no train-control state of its own: it merely
// aggregates location.TrainLocation updates into Snapshots for the view
// layer.
type Server struct {
	addr string
	root *rootView

	resolveNode func(tr location.TrainLocation) string
	nodeNames   []string
	trainIDs    []int
}

// New builds the dashboard server. resolveNode maps a train's current
// track.NodeIndex (carried inside TrainLocation) to the display name used
// by the track-occupancy view; nodeNames/trainIDs fix the page's static
// layout (every row/cell the page will ever show).
func New(
	ctx context.Context,
	addr string,
	locationUpdates <-chan location.TrainLocation,
	resolveNode func(location.TrainLocation) string,
	nodeNames []string,
	trainIDs []int,
) (*Server, error) {
	snapshots := aggregate(ctx.Done(), locationUpdates, resolveNode, trainIDs)

	root, err := newRootView(ctx, snapshots, nodeNames, trainIDs)
	if err != nil {
		return nil, fmt.Errorf("dashboard: building views: %w", err)
	}

	return &Server{
		addr:        addr,
		root:        root,
		resolveNode: resolveNode,
		nodeNames:   nodeNames,
		trainIDs:    trainIDs,
	}, nil
}

// aggregate folds the raw per-train update stream into a Snapshot
// reflecting every tracked train's latest known state, republished
// whenever any one train updates.
func aggregate(
	done <-chan struct{},
	updates <-chan location.TrainLocation,
	resolveNode func(location.TrainLocation) string,
	trainIDs []int,
) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		latest := make(map[int]location.TrainLocation, len(trainIDs))
		for {
			select {
			case <-done:
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				latest[u.Train] = u
				snap := Snapshot{}
				for _, id := range trainIDs {
					if loc, ok := latest[id]; ok {
						snap.Trains = append(snap.Trains, TrainSnapshot{
							Train:            id,
							NodeName:         resolveNode(loc),
							DistancePastNode: loc.DistancePastNode,
							VelocityUMTick:   loc.VelocityUMTick,
							AccelTicks:       loc.AccelTicks,
						})
					}
				}
				select {
				case out <- snap:
				case <-done:
					return
				}
			}
		}
	}()
	return out
}

// Router builds the mux.Router this server answers on, so callers can
// mount it under an existing http.Server or ListenAndServe it directly.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.serveIndex).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.serveWebsocket)
	return r
}

// ListenAndServe blocks serving the dashboard on addr.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.addr, s.Router())
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, s.root); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	client, err := fastview.NewClient(s.root.Updates(), w, r)
	if err != nil {
		return
	}
	_ = client.Sync()
}

func renderTemplate(w io.Writer, vc fastview.ViewComponent) error {
	t := template.New("index.html")
	tname, err := vc.Parse(t)
	if err != nil {
		return err
	}
	if _, err := t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return err
	}
	return t.Execute(w, nil)
}
