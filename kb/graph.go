package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/model"
)

var (
	// ErrFrameExists is returned when adding a frame whose name is taken.
	ErrFrameExists = errors.New("frame already exists")
	// ErrFrameNotFound is returned when a named frame or parent is absent.
	ErrFrameNotFound = errors.New("frame not found")
	// ErrNilFrame is returned when a nil or unnamed frame is supplied.
	ErrNilFrame = errors.New("nil or unnamed frame")
)

// UnresolvedFrameError reports a lookup of a name that is not in the graph.
// It matches ErrFrameNotFound with errors.Is.
type UnresolvedFrameError struct {
	Name string
}

func (e *UnresolvedFrameError) Error() string {
	return fmt.Sprintf("unresolved frame %q", e.Name)
}

func (e *UnresolvedFrameError) Is(target error) bool { return target == ErrFrameNotFound }

// CyclicReparentError reports a reparent that would make a frame its own
// ancestor.
type CyclicReparentError struct {
	Name      string
	NewParent string
}

func (e *CyclicReparentError) Error() string {
	return fmt.Sprintf("cannot reparent %q under %q: target is in its own subtree", e.Name, e.NewParent)
}

// EventType indicates what kind of change happened in the graph.
type EventType int

const (
	EventFrameAdded EventType = iota
	EventFrameUpdated
	EventFrameReparented
	EventFrameRemoved
	EventLayerAttached
)

func (t EventType) String() string {
	switch t {
	case EventFrameAdded:
		return "added"
	case EventFrameUpdated:
		return "updated"
	case EventFrameReparented:
		return "reparented"
	case EventFrameRemoved:
		return "removed"
	case EventLayerAttached:
		return "layer_attached"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers after a mutation.
type Event struct {
	Type   EventType
	Graph  string
	Frame  string
	Parent string
}

// FrameNode wraps one frame in the graph. The parent is referenced by name
// only; children are owned.
type FrameNode struct {
	frame    *model.ReferenceFrame
	parent   string
	children map[string]*FrameNode
	layers   []string
	enabled  bool

	// propagation cache, guarded by mu
	mu        sync.Mutex
	motion    core.MotionModel
	prop      core.Propagator
	warnedBad bool
}

func newNode(f *model.ReferenceFrame, parent string) *FrameNode {
	return &FrameNode{
		frame:    f,
		parent:   parent,
		children: make(map[string]*FrameNode),
		enabled:  true,
	}
}

// FrameGraph is a named tree of reference frames with a flat name index.
// Two instances are normally in play: a persistent graph and a session
// graph that is merged or dropped when its presentation ends.
type FrameGraph struct {
	mu sync.RWMutex

	name  string
	roots map[string]*FrameNode
	index map[string]*FrameNode

	subs   map[int]func(Event)
	nextID int
	detach []func(frame, layer string)

	// outer supplies parents that live in another graph.
	outer *FrameGraph

	log logging.Logger
}

// Option configures a FrameGraph.
type Option func(*FrameGraph)

// WithLogger sets the logger used for degraded resolutions.
func WithLogger(l logging.Logger) Option {
	return func(g *FrameGraph) {
		if l != nil {
			g.log = l
		}
	}
}

// WithName labels the graph in events, logs and metrics.
func WithName(name string) Option {
	return func(g *FrameGraph) { g.name = name }
}

// WithOuter lets frames in this graph name parents held by outer. Lookups
// that miss locally fall through to it. Session graphs use the persistent
// graph as their outer graph.
func WithOuter(outer *FrameGraph) Option {
	return func(g *FrameGraph) { g.outer = outer }
}

// NewFrameGraph constructs an empty graph.
func NewFrameGraph(opts ...Option) *FrameGraph {
	g := &FrameGraph{
		name:  "persistent",
		roots: make(map[string]*FrameNode),
		index: make(map[string]*FrameNode),
		subs:  make(map[int]func(Event)),
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logging.String("graph", g.name))
	return g
}

// Name returns the graph label.
func (g *FrameGraph) Name() string { return g.name }

// Add inserts a copy of f under parent; an empty parent makes it a root.
// Frames carrying TLE lines are validated here so a malformed set never
// creates a partial frame.
func (g *FrameGraph) Add(f *model.ReferenceFrame, parent string) error {
	if f == nil || f.Name == "" {
		return ErrNilFrame
	}
	if f.HasTLE() {
		if _, err := core.ParseTLE(f.TLELine1, f.TLELine2); err != nil {
			return fmt.Errorf("add frame %q: %w", f.Name, err)
		}
	}

	g.mu.Lock()
	if _, exists := g.index[f.Name]; exists {
		g.mu.Unlock()
		return fmt.Errorf("add frame %q: %w", f.Name, ErrFrameExists)
	}
	n := newNode(f.Copy(), parent)
	if p, ok := g.index[parent]; ok {
		p.children[f.Name] = n
	} else if parent == "" || g.outerHas(parent) {
		g.roots[f.Name] = n
	} else {
		g.mu.Unlock()
		return fmt.Errorf("add frame %q: parent %q: %w", f.Name, parent, ErrFrameNotFound)
	}
	g.index[f.Name] = n
	subs := g.snapshotSubs()
	g.mu.Unlock()

	g.notify(subs, Event{Type: EventFrameAdded, Graph: g.name, Frame: f.Name, Parent: parent})
	return nil
}

// Update replaces the definition of an existing frame, keeping its position
// in the tree, its children and its layers. The propagation cache is reset.
func (g *FrameGraph) Update(f *model.ReferenceFrame) error {
	if f == nil || f.Name == "" {
		return ErrNilFrame
	}
	if f.HasTLE() {
		if _, err := core.ParseTLE(f.TLELine1, f.TLELine2); err != nil {
			return fmt.Errorf("update frame %q: %w", f.Name, err)
		}
	}
	g.mu.Lock()
	n, ok := g.index[f.Name]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("update frame %q: %w", f.Name, ErrFrameNotFound)
	}
	n.mu.Lock()
	n.frame = f.Copy()
	n.motion = nil
	n.prop = core.Propagator{}
	n.warnedBad = false
	n.mu.Unlock()
	parent := n.parent
	subs := g.snapshotSubs()
	g.mu.Unlock()

	g.notify(subs, Event{Type: EventFrameUpdated, Graph: g.name, Frame: f.Name, Parent: parent})
	return nil
}

// Get returns a copy of the named frame.
func (g *FrameGraph) Get(name string) (*model.ReferenceFrame, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return n.frame.Copy(), true
}

// Exists reports whether name is in the graph.
func (g *FrameGraph) Exists(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.index[name]
	return ok
}

// Parent returns the parent name of a frame ("" for roots).
func (g *FrameGraph) Parent(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.index[name]
	if !ok {
		return "", false
	}
	return n.parent, true
}

// Children returns the sorted names of a frame's direct children.
func (g *FrameGraph) Children(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.index[name]
	if !ok {
		return nil
	}
	return sortedKeys(n.children)
}

// Roots returns the sorted names of the local root frames, including frames
// whose parent lives in the outer graph.
func (g *FrameGraph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.roots)
}

// Names returns every frame name, sorted.
func (g *FrameGraph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.index)
}

// Len returns the number of frames.
func (g *FrameGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.index)
}

// SetEnabled toggles whether a frame should be drawn.
func (g *FrameGraph) SetEnabled(name string, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.index[name]
	if !ok {
		return fmt.Errorf("enable frame %q: %w", name, ErrFrameNotFound)
	}
	n.enabled = enabled
	return nil
}

// Enabled reports whether a frame is enabled.
func (g *FrameGraph) Enabled(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.index[name]
	return ok && n.enabled
}

// AttachLayer records an opaque layer id against a frame.
func (g *FrameGraph) AttachLayer(frame, layerID string) error {
	g.mu.Lock()
	n, ok := g.index[frame]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("attach layer %q: frame %q: %w", layerID, frame, ErrFrameNotFound)
	}
	n.layers = append(n.layers, layerID)
	subs := g.snapshotSubs()
	g.mu.Unlock()

	g.notify(subs, Event{Type: EventLayerAttached, Graph: g.name, Frame: frame})
	return nil
}

// Layers returns the layer ids attached to a frame.
func (g *FrameGraph) Layers(frame string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.index[frame]
	if !ok {
		return nil
	}
	return append([]string(nil), n.layers...)
}

// OnDetach registers a callback invoked for every layer detached by
// PurgeSubtree.
func (g *FrameGraph) OnDetach(fn func(frame, layer string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detach = append(g.detach, fn)
}

// Reparent moves a frame (and its subtree) under newParent; an empty
// newParent makes it a root. Moving a frame into its own subtree returns a
// *CyclicReparentError and leaves the graph unchanged.
func (g *FrameGraph) Reparent(name, newParent string) error {
	g.mu.Lock()
	n, ok := g.index[name]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("reparent %q: %w", name, ErrFrameNotFound)
	}
	var target *FrameNode
	if newParent != "" {
		target, ok = g.index[newParent]
		if !ok && !g.outerHas(newParent) {
			g.mu.Unlock()
			return fmt.Errorf("reparent %q: new parent %q: %w", name, newParent, ErrFrameNotFound)
		}
		// Walk the local ancestry only; an outer graph never points back
		// into this one.
		for a := newParent; a != ""; {
			if a == name {
				g.mu.Unlock()
				return &CyclicReparentError{Name: name, NewParent: newParent}
			}
			an, ok := g.index[a]
			if !ok {
				break
			}
			a = an.parent
		}
	}
	if n.parent == newParent {
		g.mu.Unlock()
		return nil
	}

	g.detachFromParent(n, name)
	n.parent = newParent
	if target == nil {
		g.roots[name] = n
	} else {
		target.children[name] = n
	}
	subs := g.snapshotSubs()
	g.mu.Unlock()

	g.notify(subs, Event{Type: EventFrameReparented, Graph: g.name, Frame: name, Parent: newParent})
	return nil
}

// PurgeSubtree removes a frame and all its descendants, returning the
// removed names in depth-first order. Every layer attached in the subtree
// is reported to the OnDetach callbacks.
func (g *FrameGraph) PurgeSubtree(name string) ([]string, error) {
	g.mu.Lock()
	n, ok := g.index[name]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("purge %q: %w", name, ErrFrameNotFound)
	}
	g.detachFromParent(n, name)

	type detached struct{ frame, layer string }
	var (
		removed []string
		layers  []detached
	)
	stack := []string{name}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := g.index[cur]
		delete(g.index, cur)
		removed = append(removed, cur)
		for _, l := range node.layers {
			layers = append(layers, detached{cur, l})
		}
		kids := sortedKeys(node.children)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	cbs := append([]func(string, string){}, g.detach...)
	subs := g.snapshotSubs()
	g.mu.Unlock()

	// Notify outside the lock to avoid deadlocks.
	for _, d := range layers {
		for _, cb := range cbs {
			cb(d.frame, d.layer)
		}
	}
	for _, r := range removed {
		g.notify(subs, Event{Type: EventFrameRemoved, Graph: g.name, Frame: r})
	}
	return removed, nil
}

// Reset purges every root.
func (g *FrameGraph) Reset() {
	for _, r := range g.Roots() {
		_, _ = g.PurgeSubtree(r)
	}
}

// Subscribe registers a callback for graph events. It returns an
// unsubscribe function.
func (g *FrameGraph) Subscribe(fn func(Event)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.subs, id)
	}
}

func (g *FrameGraph) detachFromParent(n *FrameNode, name string) {
	if p, ok := g.index[n.parent]; ok {
		delete(p.children, name)
		return
	}
	delete(g.roots, name)
}

// outerHas must be called with g.mu held.
func (g *FrameGraph) outerHas(name string) bool {
	return g.outer != nil && g.outer != g && g.outer.Exists(name)
}

// snapshotSubs must be called with g.mu held.
func (g *FrameGraph) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(g.subs))
	for id := range g.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, g.subs[id])
	}
	return out
}

func (g *FrameGraph) notify(subs []func(Event), ev Event) {
	for _, s := range subs {
		s(ev)
	}
}

func sortedKeys(m map[string]*FrameNode) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
