package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// PipelineName is the registered name of the composite stage.
const PipelineName = "pipeline"

// Pipeline runs its child stages in declaration order and stops at the first
// failure. It is itself a Stage, so pipelines nest.
type Pipeline struct {
	topic    string
	stages   []Stage
	selected map[int]bool // nil runs every child
}

// NewPipeline creates a pipeline owning stages. An empty topic inherits the
// topic of the enclosing Env.
func NewPipeline(topic string, stages ...Stage) *Pipeline {
	return &Pipeline{topic: topic, stages: stages}
}

// Name implements Stage.
func (p *Pipeline) Name() string { return PipelineName }

// Topic returns the configured topic, possibly empty.
func (p *Pipeline) Topic() string { return p.topic }

// Stages returns the declared children.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Select restricts execution to the children with the given names while
// keeping declaration order. Every name must match at least one child.
func (p *Pipeline) Select(names ...string) error {
	if len(names) == 0 {
		p.selected = nil
		return nil
	}
	selected := make(map[int]bool)
	for _, name := range names {
		found := false
		for i, s := range p.stages {
			if s.Name() == name {
				selected[i] = true
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: %q is not part of the pipeline", internalerr.ErrUnknownStage, name)
		}
	}
	p.selected = selected
	return nil
}

// Active returns the children that Run will execute, in order.
func (p *Pipeline) Active() []Stage {
	var out []Stage
	for i, s := range p.stages {
		if p.selected == nil || p.selected[i] {
			out = append(out, s)
		}
	}
	return out
}

func (p *Pipeline) env(env *Env) *Env {
	if p.topic == "" || p.topic == env.Topic {
		return env
	}
	return env.withTopic(p.topic)
}

// PreRun implements Stage.
func (p *Pipeline) PreRun(env *Env) {
	env = p.env(env)
	names := make([]string, 0, len(p.stages))
	for _, s := range p.Active() {
		names = append(names, s.Name())
	}
	env.Logger.Info("starting pipeline",
		"topic", env.Topic,
		"run_id", env.RunID,
		"stages", strings.Join(names, ","))
}

// Run implements Stage.
func (p *Pipeline) Run(ctx context.Context, env *Env) bool {
	env = p.env(env)
	active := p.Active()
	for i, s := range active {
		if err := ctx.Err(); err != nil {
			env.Logger.Error("pipeline cancelled",
				"next", s.Name(),
				"skipped", len(active)-i,
				"err", err)
			return false
		}
		env.Logger.Info("executing stage", "child", s.Name(), "step", i+1, "of", len(active))
		start := time.Now()
		if !Execute(ctx, s, env) {
			env.Logger.Error("stage failed, aborting pipeline",
				"child", s.Name(),
				"skipped", len(active)-i-1)
			return false
		}
		env.Logger.Debug("stage finished", "child", s.Name(), "elapsed", time.Since(start))
	}
	return true
}

// PostRun implements Stage.
func (p *Pipeline) PostRun(env *Env) {
	env = p.env(env)
	env.Logger.Info("pipeline finished", "topic", env.Topic, "run_id", env.RunID)
}
