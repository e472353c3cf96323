package core

import (
	"math"

	"github.com/soniakeys/meeus/v3/nutation"
)

// equatorialToGalactic is the IAU J2000 rotation from equatorial to
// galactic coordinates, both right-handed Z-up, applied to column vectors.
var equatorialToGalactic = [3][3]float64{
	{-0.0548755604, -0.8734370902, -0.4838350155},
	{0.4941094279, -0.4448296300, 0.7469822445},
	{-0.8676661490, -0.1980763734, 0.4559837762},
}

// julianJ2000 is the Julian date of the J2000.0 epoch.
const julianJ2000 = 2451545.0

// eclipticObliquity is the mean obliquity of the ecliptic at J2000, radians.
var eclipticObliquity = nutation.MeanObliquity(julianJ2000).Rad()

// RaDecTo3d places a celestial position (degrees) on the unit sky sphere.
func RaDecTo3d(ra, dec float64) Vec3 {
	return GeoTo3d(dec, ra)
}

// EquatorialToGalactic maps Y-up equatorial sky vectors onto Y-up galactic
// ones: the galactic centre lands on (1,0,0) and the galactic pole on +Y.
func EquatorialToGalactic() Mat4 {
	return basisMap(func(v Vec3) Vec3 {
		z := fromEcliptic(v)
		g := equatorialToGalactic
		return fromEcliptic(Vec3{
			X: g[0][0]*z.X + g[0][1]*z.Y + g[0][2]*z.Z,
			Y: g[1][0]*z.X + g[1][1]*z.Y + g[1][2]*z.Z,
			Z: g[2][0]*z.X + g[2][1]*z.Y + g[2][2]*z.Z,
		})
	})
}

// GalacticToEquatorial is the inverse of EquatorialToGalactic.
func GalacticToEquatorial() Mat4 {
	return EquatorialToGalactic().Transpose()
}

// EquatorialToEcliptic maps Y-up Earth-equatorial vectors onto Y-up J2000
// ecliptic ones by tilting through the obliquity about the equinox (+X).
// TLE elements and SGP4 positions are equatorial; the frame graph's world
// axes are ecliptic. Precession between the TEME equator of date and J2000
// is ignored.
func EquatorialToEcliptic() Mat4 {
	se, ce := math.Sincos(eclipticObliquity)
	return basisMap(func(v Vec3) Vec3 {
		z := fromEcliptic(v)
		return fromEcliptic(Vec3{
			X: z.X,
			Y: ce*z.Y + se*z.Z,
			Z: -se*z.Y + ce*z.Z,
		})
	})
}

// LocalSiderealAngle returns local mean sidereal time at jd for an observer
// at longitude lng (degrees east), in radians.
func LocalSiderealAngle(jd, lng float64) float64 {
	a := math.Mod(GreenwichSiderealAngle(jd)+lng*DegToRad, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// HorizonCoordinates converts a celestial position to altitude and azimuth
// (degrees, azimuth east of north) for an observer at lat/lng at jd.
func HorizonCoordinates(ra, dec, lat, lng, jd float64) (alt, az float64) {
	h := LocalSiderealAngle(jd, lng) - ra*DegToRad
	sd, cd := math.Sincos(dec * DegToRad)
	sp, cp := math.Sincos(lat * DegToRad)
	sh, ch := math.Sincos(h)

	sinAlt := sp*sd + cp*cd*ch
	if sinAlt > 1 {
		sinAlt = 1
	} else if sinAlt < -1 {
		sinAlt = -1
	}
	alt = math.Asin(sinAlt) * RadToDeg
	az = math.Atan2(-sh*cd, cp*sd-sp*cd*ch) * RadToDeg
	if az < 0 {
		az += 360
	}
	return alt, az
}

// EquatorialToHorizon maps Y-up equatorial sky vectors to Y-up horizon
// vectors for an observer at lat/lng at jd, where GeoTo3d(alt, az) is the
// horizon position.
func EquatorialToHorizon(lat, lng, jd float64) Mat4 {
	return basisMap(func(v Vec3) Vec3 {
		dec, ra := GeoFrom3d(v)
		alt, az := HorizonCoordinates(ra, dec, lat, lng, jd)
		return GeoTo3d(alt, az)
	})
}

// basisMap builds the linear map taking each unit axis to f(axis).
func basisMap(f func(Vec3) Vec3) Mat4 {
	x := f(Vec3{X: 1})
	y := f(Vec3{Y: 1})
	z := f(Vec3{Z: 1})
	return BasisFromRows(x, y, z).Mat4(Vec3{})
}
