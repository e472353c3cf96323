package kb

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/signalsfoundry/skyframe/model"
)

func frame(name string, kind model.FrameKind) *model.ReferenceFrame {
	return &model.ReferenceFrame{Name: name, Kind: kind}
}

// buildTree creates a → b → c and a → d.
func buildTree(t *testing.T) *FrameGraph {
	t.Helper()
	g := NewFrameGraph()
	for _, e := range []struct{ name, parent string }{
		{"a", ""}, {"b", "a"}, {"c", "b"}, {"d", "a"},
	} {
		if err := g.Add(frame(e.name, model.FrameIdentity), e.parent); err != nil {
			t.Fatalf("Add %s: %v", e.name, err)
		}
	}
	return g
}

func TestAddAndGet(t *testing.T) {
	g := buildTree(t)
	if g.Len() != 4 {
		t.Fatalf("Len = %d, want 4", g.Len())
	}
	f, ok := g.Get("c")
	if !ok || f.Name != "c" {
		t.Fatalf("Get(c) = %+v, %v", f, ok)
	}
	f.Name = "mutated"
	if again, _ := g.Get("c"); again.Name != "c" {
		t.Fatalf("Get must return a copy, graph saw %q", again.Name)
	}
	if got := g.Children("a"); !reflect.DeepEqual(got, []string{"b", "d"}) {
		t.Fatalf("Children(a) = %v", got)
	}
	if p, _ := g.Parent("c"); p != "b" {
		t.Fatalf("Parent(c) = %q, want b", p)
	}
	if got := g.Roots(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("Roots = %v", got)
	}
}

func TestAddErrors(t *testing.T) {
	g := buildTree(t)
	if err := g.Add(frame("b", model.FrameIdentity), ""); !errors.Is(err, ErrFrameExists) {
		t.Fatalf("duplicate add: got %v, want ErrFrameExists", err)
	}
	if err := g.Add(frame("x", model.FrameIdentity), "missing"); !errors.Is(err, ErrFrameNotFound) {
		t.Fatalf("missing parent: got %v, want ErrFrameNotFound", err)
	}
	if err := g.Add(nil, ""); !errors.Is(err, ErrNilFrame) {
		t.Fatalf("nil frame: got %v", err)
	}
	if err := g.Add(&model.ReferenceFrame{}, ""); !errors.Is(err, ErrNilFrame) {
		t.Fatalf("unnamed frame: got %v", err)
	}
	if g.Len() != 4 {
		t.Fatalf("failed adds mutated the graph: Len = %d", g.Len())
	}
}

func TestAdd_RejectsMalformedTLE(t *testing.T) {
	g := NewFrameGraph()
	f := frame("sat", model.FrameOrbital)
	f.TLELine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2920"
	f.TLELine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
	err := g.Add(f, "")
	if err == nil {
		t.Fatalf("expected checksum error")
	}
	if g.Exists("sat") {
		t.Fatalf("rejected frame must not be created")
	}
}

func TestReparent_RejectsDescendant(t *testing.T) {
	g := buildTree(t)
	before := g.Names()

	for _, target := range []string{"a", "b", "c"} {
		err := g.Reparent("a", target)
		var ce *CyclicReparentError
		if !errors.As(err, &ce) {
			t.Fatalf("Reparent(a, %s): got %v, want CyclicReparentError", target, err)
		}
	}
	if p, _ := g.Parent("b"); p != "a" {
		t.Fatalf("failed reparent mutated parent of b: %q", p)
	}
	if !reflect.DeepEqual(g.Names(), before) || !reflect.DeepEqual(g.Children("a"), []string{"b", "d"}) {
		t.Fatalf("graph changed after rejected reparent")
	}
	if !reflect.DeepEqual(g.Roots(), []string{"a"}) {
		t.Fatalf("roots changed after rejected reparent: %v", g.Roots())
	}
}

func TestReparent_MovesSubtree(t *testing.T) {
	g := buildTree(t)
	if err := g.Reparent("b", "d"); err != nil {
		t.Fatalf("Reparent: %v", err)
	}
	if !reflect.DeepEqual(g.Children("a"), []string{"d"}) || !reflect.DeepEqual(g.Children("d"), []string{"b"}) {
		t.Fatalf("children after move: a=%v d=%v", g.Children("a"), g.Children("d"))
	}
	if !reflect.DeepEqual(g.Children("b"), []string{"c"}) {
		t.Fatalf("subtree not carried: b=%v", g.Children("b"))
	}
	if err := g.Reparent("b", ""); err != nil {
		t.Fatalf("Reparent to root: %v", err)
	}
	if !reflect.DeepEqual(g.Roots(), []string{"a", "b"}) {
		t.Fatalf("roots = %v", g.Roots())
	}
	if err := g.Reparent("nope", "a"); !errors.Is(err, ErrFrameNotFound) {
		t.Fatalf("unknown frame: %v", err)
	}
}

func TestPurgeSubtree_DetachesLayers(t *testing.T) {
	g := buildTree(t)
	for _, l := range []struct{ frame, layer string }{{"b", "orbit-b"}, {"c", "mesh-c"}, {"c", "label-c"}, {"d", "keep-d"}} {
		if err := g.AttachLayer(l.frame, l.layer); err != nil {
			t.Fatalf("AttachLayer: %v", err)
		}
	}
	var detached []string
	g.OnDetach(func(frame, layer string) { detached = append(detached, frame+"/"+layer) })

	removed, err := g.PurgeSubtree("b")
	if err != nil {
		t.Fatalf("PurgeSubtree: %v", err)
	}
	if !reflect.DeepEqual(removed, []string{"b", "c"}) {
		t.Fatalf("removed = %v", removed)
	}
	if want := []string{"b/orbit-b", "c/mesh-c", "c/label-c"}; !reflect.DeepEqual(detached, want) {
		t.Fatalf("detached = %v, want %v", detached, want)
	}
	if g.Exists("b") || g.Exists("c") {
		t.Fatalf("purged frames still indexed")
	}
	if !reflect.DeepEqual(g.Children("a"), []string{"d"}) {
		t.Fatalf("parent still lists purged child: %v", g.Children("a"))
	}
	if !reflect.DeepEqual(g.Layers("d"), []string{"keep-d"}) {
		t.Fatalf("sibling layers touched: %v", g.Layers("d"))
	}
	if _, err := g.PurgeSubtree("b"); !errors.Is(err, ErrFrameNotFound) {
		t.Fatalf("second purge: %v", err)
	}
}

func TestSubscribe_EventsAndUnsubscribe(t *testing.T) {
	g := NewFrameGraph(WithName("session"))
	var (
		mu     sync.Mutex
		events []Event
	)
	unsub := g.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	other := 0
	unsubOther := g.Subscribe(func(Event) { other++ })
	unsubOther()

	_ = g.Add(frame("root", model.FrameIdentity), "")
	_ = g.Add(frame("kid", model.FrameSandbox), "root")
	_ = g.Reparent("kid", "")
	_, _ = g.PurgeSubtree("kid")
	unsub()
	_ = g.Add(frame("late", model.FrameIdentity), "")

	want := []EventType{EventFrameAdded, EventFrameAdded, EventFrameReparented, EventFrameRemoved}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, ev := range events {
		if ev.Type != want[i] || ev.Graph != "session" {
			t.Fatalf("event %d = %+v, want type %v", i, ev, want[i])
		}
	}
	if other != 0 {
		t.Fatalf("unsubscribed listener received %d events", other)
	}
}

func TestOuterGraphParents(t *testing.T) {
	persistent := buildTree(t)
	session := NewFrameGraph(WithName("session"), WithOuter(persistent))
	if err := session.Add(frame("tour-frame", model.FrameSandbox), "c"); err != nil {
		t.Fatalf("Add under outer parent: %v", err)
	}
	if p, _ := session.Parent("tour-frame"); p != "c" {
		t.Fatalf("parent = %q", p)
	}
	if !reflect.DeepEqual(session.Roots(), []string{"tour-frame"}) {
		t.Fatalf("session roots = %v", session.Roots())
	}
	if _, err := session.ResolveFrame("tour-frame", 2451545); err != nil {
		t.Fatalf("resolve through outer graph: %v", err)
	}
	if err := session.Add(frame("x", model.FrameSandbox), "nowhere"); !errors.Is(err, ErrFrameNotFound) {
		t.Fatalf("unknown outer parent: %v", err)
	}
}

func TestSetEnabled(t *testing.T) {
	g := buildTree(t)
	if !g.Enabled("b") {
		t.Fatalf("frames start enabled")
	}
	if err := g.SetEnabled("b", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if g.Enabled("b") {
		t.Fatalf("b still enabled")
	}
	if err := g.SetEnabled("zz", true); !errors.Is(err, ErrFrameNotFound) {
		t.Fatalf("SetEnabled unknown: %v", err)
	}
}
