package kb

import (
	"context"
	"fmt"
	"sort"

	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/model"
)

// MergePolicy decides what happens when a session frame's name already
// exists in the destination graph.
type MergePolicy int

const (
	// KeepPersistent drops the colliding session frame. Its non-colliding
	// descendants still move across under the surviving frame.
	KeepPersistent MergePolicy = iota
	// Overwrite replaces the destination frame's definition with the
	// session one, keeping the destination's children and layers.
	Overwrite
)

func (p MergePolicy) String() string {
	switch p {
	case KeepPersistent:
		return "keep-persistent"
	case Overwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

type mergeEntry struct {
	frame  *model.ReferenceFrame
	parent string
	layers []string
}

// snapshot returns every frame in parent-before-child order.
func (g *FrameGraph) snapshot() []mergeEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []mergeEntry
	queue := sortedKeys(g.roots)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		n := g.index[name]
		out = append(out, mergeEntry{
			frame:  n.frame.Copy(),
			parent: n.parent,
			layers: append([]string(nil), n.layers...),
		})
		queue = append(queue, sortedKeys(n.children)...)
	}
	return out
}

// MergeInto moves every frame of g into dst and empties g. Frames whose
// names already exist in dst are resolved by policy and reported in the
// sorted conflict list. Non-colliding frames are added as roots of dst and
// then moved under their parent through Reparent, so the usual cycle and
// existence checks apply.
//
// A frame whose parent is in neither graph any more (an outer parent purged
// during the session) is purged from g together with its subtree before
// anything moves: its layers go to the OnDetach callbacks and it never
// reaches dst.
func (g *FrameGraph) MergeInto(dst *FrameGraph, policy MergePolicy) ([]string, error) {
	if dst == nil || dst == g {
		return nil, fmt.Errorf("merge %q: invalid destination graph", g.name)
	}
	if orphans := g.purgeOrphans(dst); len(orphans) > 0 {
		g.log.Warn(context.Background(), "merge dropped frames whose parent is gone",
			logging.Any("frames", orphans))
	}
	var conflicts []string
	for _, e := range g.snapshot() {
		name := e.frame.Name
		if dst.Exists(name) {
			conflicts = append(conflicts, name)
			if policy == Overwrite {
				if err := dst.Update(e.frame); err != nil {
					return conflicts, fmt.Errorf("merge %q: %w", name, err)
				}
			}
			for _, l := range e.layers {
				if err := dst.AttachLayer(name, l); err != nil {
					return conflicts, fmt.Errorf("merge %q: %w", name, err)
				}
			}
			continue
		}

		if err := dst.Add(e.frame, ""); err != nil {
			return conflicts, fmt.Errorf("merge %q: %w", name, err)
		}
		if e.parent != "" {
			if err := dst.Reparent(name, e.parent); err != nil {
				return conflicts, fmt.Errorf("merge %q: %w", name, err)
			}
		}
		for _, l := range e.layers {
			if err := dst.AttachLayer(name, l); err != nil {
				return conflicts, fmt.Errorf("merge %q: %w", name, err)
			}
		}
	}

	// The frames now live in dst; drop them here without firing detach
	// callbacks for layers that moved with them.
	g.mu.Lock()
	removed := sortedKeys(g.index)
	g.roots = make(map[string]*FrameNode)
	g.index = make(map[string]*FrameNode)
	subs := g.snapshotSubs()
	g.mu.Unlock()
	for _, r := range removed {
		g.notify(subs, Event{Type: EventFrameRemoved, Graph: g.name, Frame: r})
	}

	sort.Strings(conflicts)
	return conflicts, nil
}

// purgeOrphans removes the frames of g that would have no parent in dst
// after a merge and returns their names, sorted.
func (g *FrameGraph) purgeOrphans(dst *FrameGraph) []string {
	placed := make(map[string]bool)
	orphaned := make(map[string]bool)
	var roots []string
	for _, e := range g.snapshot() {
		name := e.frame.Name
		switch {
		case dst.Exists(name), e.parent == "", placed[e.parent]:
			placed[name] = true
		case orphaned[e.parent]:
			orphaned[name] = true
		case dst.Exists(e.parent):
			placed[name] = true
		default:
			orphaned[name] = true
			roots = append(roots, name)
		}
	}
	var removed []string
	for _, r := range roots {
		names, err := g.PurgeSubtree(r)
		if err != nil {
			continue
		}
		removed = append(removed, names...)
	}
	sort.Strings(removed)
	return removed
}
