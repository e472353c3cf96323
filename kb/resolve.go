package kb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/model"
)

// FrameTransform is a resolved frame: its rotating and non-rotating
// frame→root matrices, origin and radius, all in AU-scaled units.
type FrameTransform struct {
	Name             string
	World            core.Mat4
	WorldNonRotating core.Mat4
	Position         core.Vec3
	Radius           float64
}

// Spin returns the frame's own spin, i.e. World = Spin·WorldNonRotating.
func (ft FrameTransform) Spin() core.Mat4 {
	inv, err := ft.WorldNonRotating.Inverse()
	if err != nil {
		return core.Identity()
	}
	return ft.World.Mul(inv)
}

// Resolver answers named-frame queries. FrameGraph and Chain implement it.
type Resolver interface {
	Exists(name string) bool
	ResolveFrame(name string, jd float64) (FrameTransform, error)
	ResolveTransform(name string, jd float64) (core.Mat4, error)
}

// maxDepth bounds chain walks; a well-formed graph never reaches it.
const maxDepth = 1 << 16

type link struct {
	node  *FrameNode
	graph *FrameGraph
	name  string
}

type lookupFunc func(name string) (link, bool)

func (g *FrameGraph) lookup(name string) (link, bool) {
	g.mu.RLock()
	n, ok := g.index[name]
	g.mu.RUnlock()
	if ok {
		return link{node: n, graph: g, name: name}, true
	}
	if g.outer != nil && g.outer != g {
		return g.outer.lookup(name)
	}
	return link{}, false
}

// collectChain walks leaf→root and returns the links in that order.
func collectChain(lookup lookupFunc, name string) ([]link, error) {
	var chain []link
	for cur := name; cur != ""; {
		l, ok := lookup(cur)
		if !ok {
			return nil, &UnresolvedFrameError{Name: cur}
		}
		chain = append(chain, l)
		if len(chain) > maxDepth {
			return nil, fmt.Errorf("resolve %q: chain deeper than %d", name, maxDepth)
		}
		l.graph.mu.RLock()
		cur = l.node.parent
		l.graph.mu.RUnlock()
	}
	return chain, nil
}

// equatorialAxes orients TLE-backed links, whose elements and SGP4 output
// are Earth-equatorial, against the ecliptic world axes.
var equatorialAxes = core.EquatorialToEcliptic()

// compose resolves a chain collected leaf→root by walking it root→leaf by
// index. Two running matrices are kept per level: the rotating one that
// includes each body's spin and the non-rotating one that inertial children
// attach to.
func compose(chain []link, jd float64) FrameTransform {
	rot, nonRot := core.Identity(), core.Identity()
	var parent *model.ReferenceFrame
	for i := len(chain) - 1; i >= 0; i-- {
		l := chain[i]
		f, local := l.graph.linkLocal(l.node, parent, jd)
		base := rot
		if f.Kind.InertialParent() {
			base = nonRot
		}
		if f.Kind == model.FrameOrbital && f.HasTLE() {
			// Equatorial elements: keep the parent's origin, not its axes.
			base = equatorialAxes.Mul(core.Translation(nonRot.Origin()))
		}
		nonRot = local.Mul(base)
		rot = spin(f, jd).Mul(nonRot)
		parent = f
	}
	ft := FrameTransform{
		World:            rot,
		WorldNonRotating: nonRot,
		Position:         nonRot.Origin(),
	}
	if len(chain) > 0 {
		ft.Name = chain[0].name
		ft.Radius = parent.MeanRadius / core.MetersPerAU
	}
	return ft
}

func spin(f *model.ReferenceFrame, jd float64) core.Mat4 {
	if f.RotationalPeriod == 0 || f.Kind == model.FrameIdentity {
		return core.Identity()
	}
	turns := (jd - f.RotationEpoch) / f.RotationalPeriod
	return core.RotationY(2 * math.Pi * (turns - math.Floor(turns)))
}

// linkLocal returns the frame definition and its non-rotating contribution
// relative to the parent basis selected by its kind.
func (g *FrameGraph) linkLocal(n *FrameNode, parent *model.ReferenceFrame, jd float64) (*model.ReferenceFrame, core.Mat4) {
	n.mu.Lock()
	defer n.mu.Unlock()
	f := n.frame

	switch f.Kind {
	case model.FrameIdentity:
		return f, core.Identity()
	case model.FrameFixedRotation:
		radius := 0.0
		if parent != nil {
			radius = parent.MeanRadius
		}
		return f, surfacePlacement(f.Placement, radius)
	case model.FrameSandbox:
		return f, sandboxPlacement(f.Placement)
	case model.FrameOrbital:
		st := g.orbitState(n, f, jd)
		return f, st.Basis.Mat4(r3.Scale(1/core.MetersPerAU, st.Position))
	case model.FrameSynodic:
		st := g.orbitState(n, f, jd)
		return f, core.SynodicBasis(st).Mat4(core.Vec3{})
	case model.FrameTrajectory:
		return f, core.Translation(r3.Scale(1/core.MetersPerAU, trajectoryPosition(f.Trajectory, jd)))
	default:
		return f, core.Identity()
	}
}

// orbitState must be called with n.mu held.
func (g *FrameGraph) orbitState(n *FrameNode, f *model.ReferenceFrame, jd float64) core.OrbitState {
	if n.motion == nil {
		mm, err := core.NewMotionModel(f)
		if err != nil {
			g.warnOnce(n, f.Name, err)
			mm = core.KeplerMotionModel{Elements: f.Elements}
		}
		n.motion = mm
	}
	st, err := n.motion.State(jd)
	if err != nil {
		g.warnOnce(n, f.Name, err)
		if last, ok := n.prop.Last(); ok {
			return last
		}
		return core.OrbitState{Basis: core.Identity3()}
	}
	n.prop.Remember(st)
	return st
}

func (g *FrameGraph) warnOnce(n *FrameNode, name string, err error) {
	if n.warnedBad {
		return
	}
	n.warnedBad = true
	var de *core.DegenerateOrbitError
	msg := "orbit propagation failed; frame frozen"
	if errors.As(err, &de) {
		msg = "degenerate orbit; frame frozen at last valid position"
	}
	g.log.Warn(context.Background(), msg, logging.String("frame", name), logging.Err(err))
}

// surfacePlacement puts a frame on its parent's surface: +Y along the local
// vertical, +X east, +Z north, then applies heading/pitch/roll and scale.
func surfacePlacement(p model.Placement, parentRadius float64) core.Mat4 {
	up := core.GeoTo3d(p.Lat, p.Lng)
	sLng, cLng := math.Sincos(p.Lng * core.DegToRad)
	sLat, cLat := math.Sincos(p.Lat * core.DegToRad)
	east := core.Vec3{X: -sLng, Z: cLng}
	north := core.Vec3{X: -sLat * cLng, Y: cLat, Z: -sLat * sLng}

	pos := r3.Scale((parentRadius+p.Altitude)/core.MetersPerAU, up)
	pos = r3.Add(pos, r3.Scale(1/core.MetersPerAU, p.Translation))
	surface := core.BasisFromRows(east, up, north).Mat4(pos)
	return orientation(p).Mul(surface)
}

// sandboxPlacement applies only the placement's orientation, scale and
// translation.
func sandboxPlacement(p model.Placement) core.Mat4 {
	return orientation(p).Mul(core.Translation(r3.Scale(1/core.MetersPerAU, p.Translation)))
}

func orientation(p model.Placement) core.Mat4 {
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	return core.Scaling(scale).Mul(core.RotationYawPitchRoll(
		p.Heading*core.DegToRad, p.Pitch*core.DegToRad, p.Roll*core.DegToRad))
}

// trajectoryPosition interpolates linearly between the samples bracketing
// jd, clamping outside the table.
func trajectoryPosition(samples []model.TrajectorySample, jd float64) core.Vec3 {
	switch len(samples) {
	case 0:
		return core.Vec3{}
	case 1:
		return samples[0].Position
	}
	i := sort.Search(len(samples), func(i int) bool { return samples[i].JulianDate > jd })
	switch {
	case i == 0:
		return samples[0].Position
	case i == len(samples):
		return samples[len(samples)-1].Position
	}
	a, b := samples[i-1], samples[i]
	span := b.JulianDate - a.JulianDate
	if span <= 0 {
		return b.Position
	}
	return core.Lerp(a.Position, b.Position, (jd-a.JulianDate)/span)
}

// ResolveFrame composes the named frame up to its root at jd. Unknown names
// return an identity transform and an *UnresolvedFrameError.
func (g *FrameGraph) ResolveFrame(name string, jd float64) (FrameTransform, error) {
	return resolve(g.lookup, name, jd)
}

// ResolveTransform returns the frame→root matrix (including the frame's
// own spin) at jd.
func (g *FrameGraph) ResolveTransform(name string, jd float64) (core.Mat4, error) {
	ft, err := g.ResolveFrame(name, jd)
	return ft.World, err
}

// LinkTransform returns the named frame's own non-rotating contribution
// relative to its parent, without any ancestor.
func (g *FrameGraph) LinkTransform(name string, jd float64) (core.Mat4, error) {
	l, ok := g.lookup(name)
	if !ok {
		return core.Identity(), &UnresolvedFrameError{Name: name}
	}
	var parent *model.ReferenceFrame
	l.graph.mu.RLock()
	parentName := l.node.parent
	l.graph.mu.RUnlock()
	if p, ok := g.lookup(parentName); ok {
		p.node.mu.Lock()
		parent = p.node.frame
		p.node.mu.Unlock()
	}
	_, local := l.graph.linkLocal(l.node, parent, jd)
	return local, nil
}

func resolve(lookup lookupFunc, name string, jd float64) (FrameTransform, error) {
	identity := FrameTransform{Name: name, World: core.Identity(), WorldNonRotating: core.Identity()}
	if name == "" {
		return identity, &UnresolvedFrameError{Name: name}
	}
	chain, err := collectChain(lookup, name)
	if err != nil {
		return identity, err
	}
	return compose(chain, jd), nil
}

// Chain resolves names across several graphs, first match wins. A frame in
// an earlier graph may have its parent in a later one, which is how session
// frames hang off persistent bodies.
type Chain []*FrameGraph

// NewChain returns a Chain over the non-nil graphs, in order.
func NewChain(graphs ...*FrameGraph) Chain {
	c := make(Chain, 0, len(graphs))
	for _, g := range graphs {
		if g != nil {
			c = append(c, g)
		}
	}
	return c
}

func (c Chain) lookup(name string) (link, bool) {
	for _, g := range c {
		if l, ok := g.lookup(name); ok {
			return l, true
		}
	}
	return link{}, false
}

// Exists reports whether any graph holds name.
func (c Chain) Exists(name string) bool {
	_, ok := c.lookup(name)
	return ok
}

// ResolveFrame implements Resolver.
func (c Chain) ResolveFrame(name string, jd float64) (FrameTransform, error) {
	return resolve(c.lookup, name, jd)
}

// ResolveTransform implements Resolver.
func (c Chain) ResolveTransform(name string, jd float64) (core.Mat4, error) {
	ft, err := c.ResolveFrame(name, jd)
	return ft.World, err
}
