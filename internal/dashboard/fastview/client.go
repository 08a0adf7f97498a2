package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 1 * time.Second
	pubResolution  = 100 * time.Millisecond
	pingResolution = 200 * time.Millisecond
	pongWait       = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes a stream of idempotent updates to a single browser tab
// over a websocket connection, at a bounded publish rate: a value arriving
// less than pubResolution after the previous send is dropped, not queued.
type Client[T any] struct {
	updates <-chan T
	ws      *websock
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket and returns a publisher
// fed by updates.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}
	return &Client[T]{
		updates: updates,
		ws:      newWebSocket(ws),
		rootCtx: r.Context(),
	}, nil
}

// Sync runs the read pump, ping/pong liveness check, and publish loop
// concurrently, returning when any of them errors or the client
// disconnects.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error { return cli.readMessages(groupCtx) })
	group.Go(func() error { return cli.pingPong(groupCtx) })
	group.Go(func() error { return cli.publish(groupCtx) })

	return group.Wait()
}

// ErrPongDeadlineExceeded reports a client that stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")

func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	defer close(pong)
	cli.ws.conn().SetPongHandler(func(_ string) error {
		pong <- struct{}{}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.write(ctx, func(ws *websocket.Conn) error {
		err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		if err != nil && isUnexpectedClose(err) {
			err = fmt.Errorf("ping failed: %w", err)
		}
		return err
	})
}

func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.read(ctx, func(ws *websocket.Conn) error {
			_, _, readErr := ws.ReadMessage()
			return readErr
		})
		if err != nil {
			return err
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	lastSync := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			if !ok {
				return nil
			}
			if time.Since(lastSync) < pubResolution {
				break
			}
			lastSync = time.Now()
			err := cli.ws.write(ctx, func(ws *websocket.Conn) error {
				if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return fmt.Errorf("failed to set deadline: %w", err)
				}
				if err := ws.WriteJSON(update); err != nil && isUnexpectedClose(err) {
					return fmt.Errorf("publish failed: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}

func isUnexpectedClose(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// ErrSockCongestion indicates too many waiters on the socket for one op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline  = time.Second
	writeDeadline = time.Second
)

// websock serializes reads and writes to a single websocket connection,
// which permits only one concurrent reader and one concurrent writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

func (s *websock) conn() *websocket.Conn { return s.ws }

func (s *websock) read(ctx context.Context, fn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case s.readSem <- struct{}{}:
		defer func() { <-s.readSem }()
		return fn(s.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

func (s *websock) write(ctx context.Context, fn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case s.writeSem <- struct{}{}:
		defer func() { <-s.writeSem }()
		return fn(s.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
