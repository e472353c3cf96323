package render

import (
	"math"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/model"
)

// Sky-mode constants.
const (
	// fovMult converts sky zoom to a field of view in radians.
	fovMult = 343.774
	skyNear = 0.1
	skyFar  = 2.0
)

// SkyWorld returns the matrix that turns equatorial sky vectors so the
// camera's lat/lng (in the given parameterization) lands on +Z.
func SkyWorld(mode model.SkyMode, lat, lng, observerLat, observerLng, jd float64) core.Mat4 {
	aim := core.RotationY((lng - 90) * core.DegToRad).Mul(core.RotationX(lat * core.DegToRad))
	switch mode {
	case model.SkyGalactic:
		return core.EquatorialToGalactic().Mul(aim)
	case model.SkyHorizon:
		return core.EquatorialToHorizon(observerLat, observerLng, jd).Mul(aim)
	default:
		return aim
	}
}

func (p *Pipeline) sky(b *FrameBundle) {
	cam := b.Camera
	b.World = SkyWorld(p.skyMode, cam.Lat, cam.Lng, p.observerLat, p.observerLng, b.JulianDate)
	b.WorldBase = b.World
	b.WorldBaseNonRotating = b.World

	s, c := math.Sincos(cam.Rotation)
	b.CameraPosition = core.Vec3{}
	b.View = core.LookAtLH(b.CameraPosition, core.Vec3{Z: 1}, core.Vec3{X: s, Y: c})

	b.FovAngle = cam.Zoom / fovMult
	b.Near, b.Far = skyNear, skyFar
	b.Projection = core.PerspectiveFovLH(b.FovAngle, p.aspect(), b.Near, b.Far)
}
