// Package stage defines the unit of pipeline work and the composite Pipeline.
//
// A Stage runs through PreRun, Run and PostRun in that order. Run reports
// expected failures (missing inputs, malformed data, failed external calls) by
// returning false; PostRun only happens after a successful Run. Stages get
// their execution context as an explicit *Env argument instead of holding a
// reference to the pipeline that owns them.
package stage

import "context"

// Stage is one named unit of work.
type Stage interface {
	Name() string
	PreRun(env *Env)
	Run(ctx context.Context, env *Env) bool
	PostRun(env *Env)
}

// Param describes one configurable parameter of a stage.
type Param struct {
	Name    string
	Type    string
	Default string
	Usage   string
}

// Describer is implemented by stages that expose configurable parameters.
type Describer interface {
	Params() []Param
}

// ParamsOf returns the parameters of s, or nil when it exposes none.
func ParamsOf(s Stage) []Param {
	if d, ok := s.(Describer); ok {
		return d.Params()
	}
	return nil
}

// Execute runs the full lifecycle of s with a logger scoped to its name.
func Execute(ctx context.Context, s Stage, env *Env) bool {
	view := env.scoped(s.Name())
	s.PreRun(view)
	if !s.Run(ctx, view) {
		return false
	}
	s.PostRun(view)
	return true
}

// Base provides no-op lifecycle hooks for stages that only need Run.
type Base struct{}

func (Base) PreRun(*Env)  {}
func (Base) PostRun(*Env) {}
