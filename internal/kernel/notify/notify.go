/*
Package notify implements the notifier pattern from the design notes: a
small dedicated goroutine that converts a blocking upstream "await" API
into messages delivered to a parent server, so the parent's own loop stays
a single serial receive loop with no internal locking.

This is grounded directly on the teacher's fastview view_builder broadcast
helper and on channerics' Merge/OrDone/Broadcast/Convert primitives, which
this package wraps rather than reimplements.
*/
package notify

import (
	channerics "github.com/niceyeti/channerics/channels"
)

// Notifier runs fn once per item received from upstream, for as long as
// done is open. It is the Go realization of "for ev in upstream_stream {
// parent.send(wrap(ev)) }".
func Notifier[T any](done <-chan struct{}, upstream <-chan T, fn func(T)) {
	go func() {
		for item := range channerics.OrDone(done, upstream) {
			fn(item)
		}
	}()
}

// Merge fans multiple upstream event channels into one, preserving
// arrival order as seen by the consumer (not a global total order, since
// sources race, but consistent with "S sees them in arrival order" for
// whichever event arrives first).
func Merge[T any](done <-chan struct{}, upstreams ...<-chan T) <-chan T {
	return channerics.Merge(done, upstreams...)
}

// Broadcast fans one upstream channel out to n independent subscriber
// channels, each receiving every item, used when more than one notifier
// must react to the same upstream stream (e.g. both Attribution's and
// Location's sensor notifiers reading the same sensor-delta stream).
func Broadcast[T any](done <-chan struct{}, upstream <-chan T, n int) []<-chan T {
	return channerics.Broadcast(done, upstream, n)
}

// Convert maps each upstream item through fn, used to turn a raw hardware
// event stream into the message type a parent server expects.
func Convert[A, B any](done <-chan struct{}, upstream <-chan A, fn func(A) B) <-chan B {
	return channerics.Convert(done, upstream, fn)
}
