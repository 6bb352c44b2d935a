package focus

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/pkg/api/types/analysis"
)

var ErrNotFound = errors.New("not found")

const (
	FramePadding  = 50
	FrameDuration = 800 * time.Millisecond
)

// Viewport is the camera over the rendered graph.
type Viewport interface {
	// Frame animates the view to fit elements (ids of nodes and edges) with padding.
	Frame(elements []string, padding int, duration time.Duration)

	// FitAll fits the whole graph into the view and centers it.
	FitAll()
}

// Engine owns visual state of the rendered graph.
//
// Every mutation starts from a blank state. Selections are replaced, never merged.
type Engine struct {
	viewport Viewport
	logger   *log.Logger

	mu          sync.Mutex
	graph       *Graph
	selection   Selection
	annotations Annotations
}

type Option func(*Engine) *Engine

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) *Engine {
		e.logger = l
		return e
	}
}

func NewEngine(viewport Viewport, options ...Option) *Engine {
	e := &Engine{
		viewport:    viewport,
		logger:      log.New(io.Discard),
		graph:       NewGraph(nil, nil),
		selection:   Nothing(),
		annotations: emptyAnnotations(),
	}
	for _, o := range options {
		e = o(e)
	}
	return e
}

// Load replaces the graph. Visual state of the previous graph is discarded.
func (e *Engine) Load(g *Graph) {
	if g == nil {
		g = NewGraph(nil, nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph = g
	e.selection = Nothing()
	e.annotations = emptyAnnotations()
}

func (e *Engine) Graph() *Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// State returns the current selection and its visual state.
func (e *Engine) State() (Selection, Annotations) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection, e.annotations
}

func (e *Engine) commit(s Selection, a Annotations) {
	e.selection = s
	e.annotations = a
}

// Focus projects entities of the anomaly onto the graph.
//
// An anomaly without entities changes nothing.
// When no entity is found in the graph, the view is left as it is.
func (e *Engine) Focus(anomaly analysis.Anomaly) Annotations {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel := OnAnomaly(anomaly)
	entities := sel.Entities()
	if len(entities) == 0 {
		return e.annotations
	}

	ann := Annotate(e.graph, sel)
	e.commit(sel, ann)

	if len(ann.Resolved) == 0 {
		e.logger.Warn(
			"no entity of the anomaly is found in the graph",
			"anomaly", anomaly.AnomalyId, "entities", strings.Join(entities, ","),
		)
		return ann
	}
	if 0 < len(ann.Unresolved) {
		e.logger.Debug(
			"some entities are not in the graph",
			"anomaly", anomaly.AnomalyId, "unresolved", strings.Join(ann.Unresolved, ","),
		)
	}

	nodes, edges := ann.Highlighted(e.graph)
	e.viewport.Frame(append(nodes, edges...), FramePadding, FrameDuration)
	return ann
}

// Search selects a node by its exact id, and frames its neighborhood.
//
// Labels are not looked up. When the node is not found, it returns ErrNotFound
// and nothing is changed.
func (e *Engine) Search(term string) (Annotations, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := strings.TrimSpace(term)
	if _, ok := e.graph.Node(id); !ok || id == "" {
		return e.annotations, fmt.Errorf("%w: node %q", ErrNotFound, term)
	}

	sel := OnNode(id)
	ann := Annotate(e.graph, sel)
	e.commit(sel, ann)

	nodes, edges := ann.Highlighted(e.graph)
	e.viewport.Frame(append(nodes, edges...), FramePadding, FrameDuration)
	return ann, nil
}

// Select selects a node or an edge by id.
//
// Empty id means the background, and clears the selection.
// Unknown ids cause ErrNotFound without changes.
func (e *Engine) Select(id string) (Annotations, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sel Selection
	if id == "" {
		sel = Nothing()
	} else if _, ok := e.graph.Node(id); ok {
		sel = OnNode(id)
	} else if _, ok := e.graph.Edge(id); ok {
		sel = OnEdge(id)
	} else {
		return e.annotations, fmt.Errorf("%w: element %q", ErrNotFound, id)
	}

	ann := Annotate(e.graph, sel)
	e.commit(sel, ann)
	return ann, nil
}

// Reset clears the selection and fits the whole graph.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commit(Nothing(), emptyAnnotations())
	e.viewport.FitAll()
}

// Frame is a camera move requested by the engine.
type Frame struct {
	// Elements framed. Empty when Whole.
	Elements []string
	Padding  int
	Duration time.Duration

	// Whole graph is fitted.
	Whole bool
}

// Recorder is a Viewport remembering camera moves, for headless use.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *Recorder) Frame(elements []string, padding int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{
		Elements: append([]string{}, elements...), Padding: padding, Duration: duration,
	})
}

func (r *Recorder) FitAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{Whole: true})
}

// Last returns the latest camera move.
func (r *Recorder) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame{}, r.frames...)
}
