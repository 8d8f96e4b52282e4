// Package registry maps stage names used in configuration files to their
// constructors and assembles pipelines from parsed documents.
package registry

import (
	"fmt"
	"sort"

	"github.com/cognicore/korpus/pkg/korpus/config"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/stage"
	"github.com/cognicore/korpus/pkg/korpus/stages"
)

// Factory builds a stage from its descriptor.
type Factory func(r *Registry, spec config.StageSpec) (stage.Stage, error)

// Entry is one registered stage kind.
type Entry struct {
	New    Factory
	Params []stage.Param
}

// Registry holds the known stage kinds. It is populated at startup and read
// afterwards; it is not safe for concurrent registration.
type Registry struct {
	entries map[string]Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a stage kind. Names must be unique.
func (r *Registry) Register(name string, e Entry) error {
	if name == "" || e.New == nil {
		return fmt.Errorf("registry: stage needs a name and a factory")
	}
	if _, dup := r.entries[name]; dup {
		return fmt.Errorf("registry: stage %q registered twice", name)
	}
	r.entries[name] = e
	return nil
}

func (r *Registry) mustRegister(name string, e Entry) {
	if err := r.Register(name, e); err != nil {
		panic(err)
	}
}

// Names lists registered stage names alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the documented parameters of a stage kind.
func (r *Registry) Describe(name string) ([]stage.Param, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, unknown(name)
	}
	return e.Params, nil
}

// Stage builds a single stage from its descriptor.
func (r *Registry) Stage(spec config.StageSpec) (stage.Stage, error) {
	e, ok := r.entries[spec.Name]
	if !ok {
		return nil, unknown(spec.Name)
	}
	return e.New(r, spec)
}

// Stages builds a list of descriptors, failing on the first bad one.
func (r *Registry) Stages(specs []config.StageSpec) ([]stage.Stage, error) {
	out := make([]stage.Stage, 0, len(specs))
	for i, spec := range specs {
		s, err := r.Stage(spec)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i+1, spec.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Build assembles the root pipeline of doc and applies its "only" selection.
// The root pipeline inherits the Env topic, which callers set from doc.Topic.
func (r *Registry) Build(doc *config.Document) (*stage.Pipeline, error) {
	children, err := r.Stages(doc.Stages)
	if err != nil {
		return nil, err
	}
	p := stage.NewPipeline("", children...)
	if err := p.Select(doc.Only...); err != nil {
		return nil, err
	}
	return p, nil
}

func unknown(name string) error {
	return fmt.Errorf("%w: %q", internalerr.ErrUnknownStage, name)
}

// Typed adapts a config-struct constructor into a Factory. Parameters are
// decoded over the value returned by defaults, so omitted keys keep their
// default and unknown keys are rejected.
func Typed[C any, S stage.Stage](defaults func() C, build func(C) (S, error)) Factory {
	return func(_ *Registry, spec config.StageSpec) (stage.Stage, error) {
		cfg := defaults()
		if err := spec.Decode(&cfg); err != nil {
			return nil, err
		}
		s, err := build(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func zero[C any]() C {
	var c C
	return c
}

type pipelineConfig struct {
	Topic  string             `yaml:"topic"`
	Only   []string           `yaml:"only"`
	Stages []config.StageSpec `yaml:"stages"`
}

func newPipeline(r *Registry, spec config.StageSpec) (stage.Stage, error) {
	var cfg pipelineConfig
	if err := spec.Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("%w: nested pipeline declares no stages", internalerr.ErrInvalidConfig)
	}
	children, err := r.Stages(cfg.Stages)
	if err != nil {
		return nil, err
	}
	p := stage.NewPipeline(cfg.Topic, children...)
	if err := p.Select(cfg.Only...); err != nil {
		return nil, err
	}
	return p, nil
}

var pipelineParams = []stage.Param{
	{Name: "topic", Type: "string", Usage: "topic for the children, inherited when empty"},
	{Name: "only", Type: "list", Usage: "run only these children"},
	{Name: "stages", Type: "list", Usage: "child stage descriptors"},
}

// Default returns a registry with every built-in stage and the nested
// pipeline.
func Default() *Registry {
	r := New()
	r.mustRegister(stage.PipelineName, Entry{New: newPipeline, Params: pipelineParams})

	r.mustRegister(stages.JSONLImportName, Entry{
		New:    Typed(zero[stages.JSONLImportConfig], stages.NewJSONLImport),
		Params: new(stages.JSONLImport).Params(),
	})
	r.mustRegister(stages.WikiScrapingName, Entry{
		New:    Typed(stages.DefaultWikiScrapingConfig, stages.NewWikiScraping),
		Params: new(stages.WikiScraping).Params(),
	})
	r.mustRegister(stages.TextCleaningName, Entry{
		New:    Typed(stages.DefaultTextCleaningConfig, stages.NewTextCleaning),
		Params: new(stages.TextCleaning).Params(),
	})
	r.mustRegister(stages.CorpusSplitName, Entry{
		New:    Typed(stages.DefaultCorpusSplitConfig, stages.NewCorpusSplit),
		Params: new(stages.CorpusSplit).Params(),
	})
	r.mustRegister(stages.FrequencyFilteringName, Entry{
		New:    Typed(stages.DefaultFrequencyFilteringConfig, stages.NewFrequencyFiltering),
		Params: new(stages.FrequencyFiltering).Params(),
	})
	r.mustRegister(stages.DictionaryCreationName, Entry{
		New:    Typed(zero[stages.DictionaryCreationConfig], stages.NewDictionaryCreation),
		Params: new(stages.DictionaryCreation).Params(),
	})
	r.mustRegister(stages.ApplyDictionaryName, Entry{
		New:    Typed(zero[stages.ApplyDictionaryConfig], stages.NewApplyDictionary),
		Params: new(stages.ApplyDictionary).Params(),
	})
	r.mustRegister(stages.ConnectSQLName, Entry{
		New:    Typed(zero[stages.ConnectSQLConfig], stages.NewConnectSQL),
		Params: new(stages.ConnectSQL).Params(),
	})
	r.mustRegister(stages.SQLExportName, Entry{
		New:    Typed(stages.DefaultSQLExportConfig, stages.NewSQLExport),
		Params: new(stages.SQLExport).Params(),
	})
	r.mustRegister(stages.CorpusAnalysisName, Entry{
		New:    Typed(stages.DefaultCorpusAnalysisConfig, stages.NewCorpusAnalysis),
		Params: new(stages.CorpusAnalysis).Params(),
	})
	return r
}
