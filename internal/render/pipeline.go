// Package render turns a camera state into the per-tick matrix stack and
// view frustum handed to the rasterizer.
//
// All matrices use the row-vector convention of package core. World maps
// root-frame coordinates (AU-scaled) into render space; WorldBase and
// WorldBaseNonRotating map the tracked frame's rotating and non-rotating
// local coordinates into the same render space.
package render

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/kb"
	"github.com/signalsfoundry/skyframe/model"
)

// Default viewport and tracked bodies.
const (
	DefaultWidth        = 1920
	DefaultHeight       = 1080
	DefaultSurfaceFrame = "Earth"
	DefaultSolarFrame   = "Sun"
)

// FrameBundle is everything the renderer needs for one tick.
type FrameBundle struct {
	Mode       model.ViewMode
	Camera     model.CameraState
	JulianDate float64

	World                core.Mat4
	WorldBase            core.Mat4
	WorldBaseNonRotating core.Mat4
	View                 core.Mat4
	Projection           core.Mat4
	// ViewProjection is World·View·Projection, so the frustum planes are in
	// root-frame coordinates.
	ViewProjection core.Mat4
	Frustum        core.Frustum

	// CameraPosition is the eye in render space.
	CameraPosition core.Vec3
	Near, Far      float64
	// FovAngle is the vertical field of view in radians.
	FovAngle float64
	// FovScale is arc-seconds per viewport pixel.
	FovScale float64

	// Unresolved lists frame names that could not be resolved this tick.
	Unresolved []string
}

// LayerWorld returns the matrix taking a frame's local coordinates into
// render space, using its rotating or non-rotating basis.
func (b FrameBundle) LayerWorld(ft kb.FrameTransform, nonRotating bool) core.Mat4 {
	if nonRotating {
		return ft.WorldNonRotating.Mul(b.World)
	}
	return ft.World.Mul(b.World)
}

// Pipeline computes FrameBundles. It keeps the smoothed surface altitude
// between ticks and so must only be used from the tick goroutine.
type Pipeline struct {
	width, height int
	skyMode       model.SkyMode
	observerLat   float64
	observerLng   float64
	elevation     ElevationSampler
	log           logging.Logger

	altitude altitudeFilter
	warned   map[string]bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithViewport sets the viewport size in pixels.
func WithViewport(width, height int) Option {
	return func(p *Pipeline) {
		if width > 0 && height > 0 {
			p.width, p.height = width, height
		}
	}
}

// WithSkyMode selects the sky parameterization.
func WithSkyMode(m model.SkyMode) Option {
	return func(p *Pipeline) { p.skyMode = m }
}

// WithObserver sets the ground location used by the local-horizon sky.
func WithObserver(lat, lng float64) Option {
	return func(p *Pipeline) { p.observerLat, p.observerLng = lat, lng }
}

// WithElevation sets the terrain sampler used in surface mode.
func WithElevation(s ElevationSampler) Option {
	return func(p *Pipeline) { p.elevation = s }
}

// WithLogger sets the fallback logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// New returns a Pipeline with a 1920x1080 viewport and equatorial sky.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		width:  DefaultWidth,
		height: DefaultHeight,
		log:    logging.Noop(),
		warned: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SkyMode returns the active sky parameterization.
func (p *Pipeline) SkyMode() model.SkyMode { return p.skyMode }

// SetSkyMode switches the sky parameterization.
func (p *Pipeline) SetSkyMode(m model.SkyMode) { p.skyMode = m }

// SetViewport resizes the viewport; non-positive sizes are ignored.
func (p *Pipeline) SetViewport(width, height int) {
	WithViewport(width, height)(p)
}

func (p *Pipeline) aspect() float64 {
	return float64(p.width) / float64(p.height)
}

// Compute derives the matrices and frustum for cam at jd. Frame lookups
// that fail degrade to identity transforms and are reported in
// FrameBundle.Unresolved; Compute never fails.
func (p *Pipeline) Compute(ctx context.Context, cam model.CameraState, frames kb.Resolver, mode model.ViewMode, jd float64) FrameBundle {
	cam = cam.Clamp(mode)
	b := FrameBundle{Mode: mode, Camera: cam, JulianDate: jd}

	switch mode {
	case model.ModeSurface:
		p.surface(ctx, &b, frames)
	case model.ModeSolarSystem:
		p.solarSystem(ctx, &b, frames)
	default:
		p.sky(&b)
	}

	b.ViewProjection = b.World.Mul(b.View).Mul(b.Projection)
	b.Frustum = core.ExtractFrustum(b.ViewProjection)
	b.FovScale = b.FovAngle * core.RadToDeg * 3600 / float64(p.height)
	return b
}

// resolve looks up a tracked frame, recording and logging failures once
// per name.
func (p *Pipeline) resolve(ctx context.Context, b *FrameBundle, frames kb.Resolver, name string) (kb.FrameTransform, bool) {
	if frames == nil {
		b.Unresolved = append(b.Unresolved, name)
		return kb.FrameTransform{Name: name, World: core.Identity(), WorldNonRotating: core.Identity()}, false
	}
	ft, err := frames.ResolveFrame(name, b.JulianDate)
	if err != nil {
		b.Unresolved = append(b.Unresolved, name)
		if !p.warned[name] {
			p.warned[name] = true
			logging.FromContext(ctx, p.log).Warn(ctx, "tracked frame unresolved",
				logging.String("frame", name),
				logging.String("mode", b.Mode.String()),
				logging.Err(err),
			)
		}
		return ft, false
	}
	delete(p.warned, name)
	return ft, true
}

// orbitCamera places an eye at distance from target, tilted by angle away
// from up toward north after north has been turned by rotation about up.
// It returns the eye and the screen-up vector.
func orbitCamera(target, up, north, east core.Vec3, distance, rotation, angle float64) (eye, screenUp core.Vec3) {
	sr, cr := math.Sincos(rotation)
	heading := r3.Add(r3.Scale(cr, north), r3.Scale(sr, east))
	sa, ca := math.Sincos(angle)
	dir := r3.Add(r3.Scale(ca, up), r3.Scale(sa, heading))
	eye = r3.Add(target, r3.Scale(distance, dir))
	screenUp = r3.Add(r3.Scale(-sa, up), r3.Scale(ca, heading))
	return eye, screenUp
}

// localAxes returns the surface normal, north and east unit vectors at a
// lat/lng (degrees) on the Y-up unit sphere.
func localAxes(lat, lng float64) (up, north, east core.Vec3) {
	sLat, cLat := math.Sincos(lat * core.DegToRad)
	sLng, cLng := math.Sincos(lng * core.DegToRad)
	up = core.GeoTo3d(lat, lng)
	north = core.Vec3{X: -sLat * cLng, Y: cLat, Z: -sLat * sLng}
	east = core.Vec3{X: -sLng, Y: 0, Z: cLng}
	return up, north, east
}
