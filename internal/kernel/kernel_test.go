package kernel

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSendReceiveReply(t *testing.T) {
	Convey("Given a kernel with a running echo task", t, func() {
		k := New()
		echo := k.Create(1, func(t *Task) {
			for {
				from, req, reply := t.Receive()
				_ = from
				reply.Reply(req)
			}
		})

		caller := k.Create(1, func(*Task) {})

		Convey("Send returns the echoed payload", func() {
			resp, err := caller.Send(echo.ID(), "ping")
			So(err, ShouldBeNil)
			So(resp, ShouldEqual, "ping")
		})

		Convey("A second Reply on the same token fails", func() {
			tokens := make(chan *ReplyToken, 1)
			worker := k.Create(1, func(t *Task) {
				_, _, reply := t.Receive()
				tokens <- reply
				reply.Reply(nil)
			})

			caller.Send(worker.ID(), "x")
			usedToken := <-tokens

			So(usedToken.Reply(nil), ShouldEqual, ErrNotReplyBlocked)
		})
	})
}

func TestSendUnknownTaskFails(t *testing.T) {
	Convey("Given a kernel with no such task", t, func() {
		k := New()
		caller := k.Create(1, func(*Task) {})

		Convey("Send to a never-registered id fails with ErrInvalidTid", func() {
			_, err := caller.Send(TaskID(99999), "x")
			So(err, ShouldEqual, ErrInvalidTid)
		})
	})
}

func TestSendToExitedTaskFails(t *testing.T) {
	Convey("Given a task that exits immediately", t, func() {
		k := New()
		done := make(chan struct{})
		gone := k.Create(1, func(*Task) { close(done) })
		caller := k.Create(1, func(*Task) {})
		<-done

		Convey("Eventually Send reports the receiver gone", func() {
			_, err := caller.Send(gone.ID(), "x")
			So(err, ShouldEqual, ErrReceiverGone)
		})
	})
}
