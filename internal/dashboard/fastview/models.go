// Package fastview implements a builder pattern for simple server-rendered
// views: given an input data format, apply a transformation to a
// view-model, then multiplex that data to one or more view components,
// each publishing incremental DOM updates over a websocket.
package fastview

import "html/template"

// EleUpdate is an element identifier and a set of operations to apply to
// its attributes/content.
type EleUpdate struct {
	// EleId is the id by which to find the element.
	EleId string
	// Ops' keys are attribute names or "textContent"; values are the
	// strings those are set to.
	Ops []Op
}

// Op is a key and value, e.g. an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a server-side view: Parse writes its initial template
// form into a parent template, and Updates streams ele-updates as state
// changes.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	Parse(*template.Template) (string, error)
}
