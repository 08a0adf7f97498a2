package fastview

import (
	"context"
	"errors"

	channerics "github.com/niceyeti/channerics/channels"
)

// ViewBuilder constructs one or more views sharing a common view-model,
// wiring up the channels and context between a raw data source and each
// view's builder function.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source      <-chan DataModel
	viewModelFn func(DataModel) ViewModel
	builderFns  []func(<-chan struct{}, <-chan ViewModel) ViewComponent
	done        <-chan struct{}
}

// NewViewBuilder returns a builder for a given data-model and view-model.
func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{}
}

// WithModel sets the raw input channel and its conversion into the shared
// view-model type.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	input <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source = input
	vb.viewModelFn = convert
	return vb
}

// ViewBuilderFunc builds a view from a view-model channel and a done
// channel for cleanup.
type ViewBuilderFunc[ViewModel any] func(<-chan struct{}, <-chan ViewModel) ViewComponent

// WithView registers a view to build; views are returned in the order
// added.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	builderFn ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.builderFns = append(vb.builderFns, builderFn)
	return vb
}

// WithContext ensures every downstream channel closes when ctx is
// cancelled.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

var ErrNoViews = errors.New("no views to build: WithView must be called")
var ErrNoModel = errors.New("no model specified: WithModel must be called")

// Build runs the stored builder functions, fanning the converted
// view-model out to each one, and returns the constructed views.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() (views []ViewComponent, err error) {
	if len(vb.builderFns) == 0 {
		return nil, ErrNoViews
	}
	if vb.viewModelFn == nil {
		return nil, ErrNoModel
	}

	vmChan := channerics.Convert(vb.done, vb.source, vb.viewModelFn)
	vmChans := channerics.Broadcast(vb.done, vmChan, len(vb.builderFns))
	for i, build := range vb.builderFns {
		views = append(views, build(vb.done, vmChans[i]))
	}
	return
}
