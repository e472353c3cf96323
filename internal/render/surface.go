package render

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/kb"
)

// ElevationSampler reports terrain height in metres above a body's mean
// radius.
type ElevationSampler interface {
	Elevation(ctx context.Context, frame string, lat, lng float64) (float64, error)
}

// ElevationFunc adapts a function to ElevationSampler.
type ElevationFunc func(ctx context.Context, frame string, lat, lng float64) (float64, error)

// Elevation implements ElevationSampler.
func (f ElevationFunc) Elevation(ctx context.Context, frame string, lat, lng float64) (float64, error) {
	return f(ctx, frame, lat, lng)
}

const (
	surfaceFov = math.Pi / 4
	// surfaceNearFactor scales near with camera distance.
	surfaceNearFactor = 0.05
	surfaceMinFar     = 0.5
)

// SurfaceDistance is the camera distance from its target in body radii.
func SurfaceDistance(zoom float64) float64 {
	return 4*zoom/180 + 1e-6
}

// altitudeFilter smooths sampled terrain height (in radii): it follows
// rising ground quickly and falling ground slowly.
type altitudeFilter struct {
	frame string
	value float64
	ok    bool
}

func (f *altitudeFilter) update(frame string, sample float64) float64 {
	if !f.ok || f.frame != frame {
		f.frame, f.value, f.ok = frame, sample, true
		return f.value
	}
	if sample > f.value {
		f.value = (2*f.value + sample) / 3
	} else {
		f.value = (9*f.value + sample) / 10
	}
	return f.value
}

// Altitude returns the current smoothed terrain height in radii.
func (p *Pipeline) Altitude() float64 { return p.altitude.value }

func (p *Pipeline) surface(ctx context.Context, b *FrameBundle, frames kb.Resolver) {
	cam := b.Camera
	name := cam.TargetFrame
	if name == "" {
		name = DefaultSurfaceFrame
	}
	ft, _ := p.resolve(ctx, b, frames, name)
	radius := ft.Radius
	if radius <= 0 {
		radius = 1
	}

	height := p.altitude.value
	if p.elevation != nil {
		elev, err := p.elevation.Elevation(ctx, name, cam.Lat, cam.Lng)
		if err != nil {
			logging.FromContext(ctx, p.log).Debug(ctx, "elevation sample failed",
				logging.String("frame", name), logging.Err(err))
		} else {
			height = p.altitude.update(name, elev/(radius*core.MetersPerAU))
		}
	}

	// Render space is the body's rotating frame scaled to unit radius.
	b.WorldBase = core.Scaling(1 / radius)
	inv, err := ft.World.Inverse()
	if err != nil {
		inv = core.Identity()
	}
	b.World = inv.Mul(b.WorldBase)
	spinInv, err := ft.Spin().Inverse()
	if err != nil {
		spinInv = core.Identity()
	}
	b.WorldBaseNonRotating = spinInv.Mul(b.WorldBase)

	up, north, east := localAxes(cam.Lat, cam.Lng)
	target := r3.Scale(1+height, up)
	d := SurfaceDistance(cam.Zoom)
	eye, screenUp := orbitCamera(target, up, north, east, d, cam.Rotation, cam.Angle)
	b.CameraPosition = eye
	b.View = core.LookAtLH(eye, target, screenUp)

	b.FovAngle = surfaceFov
	b.Near = surfaceNearFactor * d
	b.Far = math.Max(surfaceMinFar, math.Sqrt((d+1)*(d+1)-1))
	b.Projection = core.PerspectiveFovLH(b.FovAngle, p.aspect(), b.Near, b.Far)
}
