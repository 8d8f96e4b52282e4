package stage

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/layout"
)

// Env is the execution context of one pipeline run. Child stages share the
// same resource table; per-stage views only differ in their logger and, for
// nested pipelines, their topic. Env is not safe for concurrent use.
type Env struct {
	Topic  string
	RunID  string
	Dirs   layout.Dirs
	Logger *slog.Logger
	Rand   *mrand.Rand

	root   *slog.Logger // Logger before per-stage scoping
	shared *resources
}

type resources struct {
	order []string
	items map[string]io.Closer
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Env) {
		if l != nil {
			e.Logger = l
		}
	}
}

// WithDirs sets the working directories (default: layout.DefaultDirs()).
func WithDirs(d layout.Dirs) Option {
	return func(e *Env) {
		e.Dirs = d.Merge(layout.DefaultDirs())
	}
}

// WithSeed makes shuffling reproducible.
func WithSeed(seed int64) Option {
	return func(e *Env) {
		e.Rand = mrand.New(mrand.NewSource(seed))
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(e *Env) {
		if id != "" {
			e.RunID = id
		}
	}
}

// NewEnv creates a root execution context for topic.
func NewEnv(topic string, opts ...Option) *Env {
	e := &Env{
		Topic:  topic,
		RunID:  newRunID(),
		Dirs:   layout.DefaultDirs(),
		Logger: slog.Default(),
		shared: &resources{items: make(map[string]io.Closer)},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Rand == nil {
		e.Rand = mrand.New(mrand.NewSource(time.Now().UnixNano()))
	}
	e.root = e.Logger
	return e
}

var runEntropy = ulid.Monotonic(rand.Reader, 0)

func newRunID() string {
	return ulid.MustNew(ulid.Now(), runEntropy).String()
}

// scoped returns a view of e for one stage.
func (e *Env) scoped(name string) *Env {
	view := *e
	view.root = e.base()
	view.Logger = view.root.With("stage", name)
	return &view
}

func (e *Env) base() *slog.Logger {
	switch {
	case e.root != nil:
		return e.root
	case e.Logger != nil:
		return e.Logger
	default:
		return slog.Default()
	}
}

// withTopic returns a view of e under another topic, sharing resources.
func (e *Env) withTopic(topic string) *Env {
	view := *e
	view.Topic = topic
	view.root = e.base().With("topic", topic)
	view.Logger = view.root
	return &view
}

// TmpPath, DataPath and OutputPath resolve a logical name under the current topic.
func (e *Env) TmpPath(logical string) string    { return e.Dirs.TmpPath(e.Topic, logical) }
func (e *Env) DataPath(logical string) string   { return e.Dirs.DataPath(e.Topic, logical) }
func (e *Env) OutputPath(logical string) string { return e.Dirs.OutputPath(e.Topic, logical) }

// DictionaryPath is where the topic dictionary lives.
func (e *Env) DictionaryPath() string { return e.Dirs.DictionaryPath(e.Topic) }

// Attach registers a shared resource for later stages. Attaching a name twice
// closes the previous resource first.
func (e *Env) Attach(name string, r io.Closer) {
	if e.shared == nil {
		e.shared = &resources{items: make(map[string]io.Closer)}
	}
	if prev, ok := e.shared.items[name]; ok {
		if err := prev.Close(); err != nil {
			e.Logger.Warn("closing replaced resource", "resource", name, "err", err)
		}
		e.shared.remove(name)
	}
	e.shared.items[name] = r
	e.shared.order = append(e.shared.order, name)
}

// Resource returns a resource attached by an earlier stage.
func (e *Env) Resource(name string) (io.Closer, error) {
	if e.shared != nil {
		if r, ok := e.shared.items[name]; ok {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", internalerr.ErrResourceMissing, name)
}

// Close releases attached resources in reverse attach order.
func (e *Env) Close() error {
	if e.shared == nil {
		return nil
	}
	var errs []error
	for i := len(e.shared.order) - 1; i >= 0; i-- {
		name := e.shared.order[i]
		if err := e.shared.items[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	e.shared.order = nil
	e.shared.items = make(map[string]io.Closer)
	return errors.Join(errs...)
}

func (r *resources) remove(name string) {
	delete(r.items, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
