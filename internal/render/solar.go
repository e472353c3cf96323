package render

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/kb"
)

// Near/far budgets for solar-system mode, in AU-scaled units.
const (
	solarFov = math.Pi / 4

	closeNearFactor = 0.03
	closeFar        = 1900.0
	wideNearFactor  = 0.1
	wideNearMax     = 0.1
	wideFar         = 900056.0
	minNear         = 1e-11
)

// SolarDistance is the camera distance from its target in AU-scaled units.
func SolarDistance(zoom float64) float64 {
	return 4*zoom/9 + 1e-6
}

// SolarClipPlanes chooses near and far for a camera at distance from a
// tracked body of the given radius: a tight budget close to the body and a
// wide one for overview and star-field views.
func SolarClipPlanes(distance, radius float64) (near, far float64) {
	if distance < 2*radius {
		return math.Max(closeNearFactor*distance, minNear), closeFar
	}
	return math.Max(math.Min(wideNearFactor*distance, wideNearMax), minNear), wideFar
}

func (p *Pipeline) solarSystem(ctx context.Context, b *FrameBundle, frames kb.Resolver) {
	cam := b.Camera
	name := cam.TargetFrame
	if name == "" {
		name = DefaultSolarFrame
	}
	ft, _ := p.resolve(ctx, b, frames, name)

	// Render space is root space recentred on the tracked frame.
	b.World = core.Translation(r3.Scale(-1, ft.Position))
	b.WorldBase = ft.World.Mul(b.World)
	b.WorldBaseNonRotating = ft.WorldNonRotating.Mul(b.World)

	// Orbit in the frame's non-rotating axes so the camera does not spin
	// with the body.
	basis := ft.WorldNonRotating
	up, north, east := localAxes(cam.Lat, cam.Lng)
	up = unitOr(basis.TransformVector(up), core.Vec3{Y: 1})
	north = unitOr(basis.TransformVector(north), core.Vec3{Z: 1})
	east = unitOr(basis.TransformVector(east), core.Vec3{X: 1})

	target := b.WorldBase.TransformPoint(cam.ViewTarget)
	d := SolarDistance(cam.Zoom)
	eye, screenUp := orbitCamera(target, up, north, east, d, cam.Rotation, cam.Angle)
	b.CameraPosition = eye
	b.View = core.LookAtLH(eye, target, screenUp)

	b.FovAngle = solarFov
	b.Near, b.Far = SolarClipPlanes(d, ft.Radius)
	b.Projection = core.PerspectiveFovLH(b.FovAngle, p.aspect(), b.Near, b.Far)
}

func unitOr(v, fallback core.Vec3) core.Vec3 {
	if r3.Norm(v) == 0 || !core.IsFinite(v) {
		return fallback
	}
	return r3.Unit(v)
}
