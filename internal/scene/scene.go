// Package scene loads frame definitions and named camera places from YAML
// (or JSON) scene files into a frame graph.
package scene

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/kb"
	"github.com/signalsfoundry/skyframe/model"
)

// ErrInvalidScene wraps every validation failure.
var ErrInvalidScene = errors.New("invalid scene")

// Scene is the decoded form of a scene file.
type Scene struct {
	Frames []FrameSpec `yaml:"frames"`
	Places []Place     `yaml:"places"`
}

// FrameSpec describes one reference frame.
type FrameSpec struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
	Kind   string `yaml:"kind"`

	Radius           float64 `yaml:"radius"`           // metres
	RotationalPeriod float64 `yaml:"rotationalPeriod"` // days
	RotationEpoch    float64 `yaml:"rotationEpoch"`    // JD
	Oblateness       float64 `yaml:"oblateness"`
	Color            string  `yaml:"color"`
	ShowOrbitPath    bool    `yaml:"showOrbitPath"`

	Elements   *ElementsSpec    `yaml:"elements"`
	TLE        []string         `yaml:"tle"`
	Placement  *PlacementSpec   `yaml:"placement"`
	Trajectory []TrajectorySpec `yaml:"trajectory"`
}

// ElementsSpec is a Keplerian element set. SemiMajorAxisAU is used when
// SemiMajorAxis is zero.
type ElementsSpec struct {
	SemiMajorAxis   float64 `yaml:"semiMajorAxis"`
	SemiMajorAxisAU float64 `yaml:"semiMajorAxisAU"`
	Eccentricity    float64 `yaml:"eccentricity"`
	Inclination     float64 `yaml:"inclination"`
	AscendingNode   float64 `yaml:"ascendingNode"`
	ArgPeriapsis    float64 `yaml:"argPeriapsis"`
	MeanAnomaly     float64 `yaml:"meanAnomaly"`
	MeanDailyMotion float64 `yaml:"meanDailyMotion"`
	Epoch           float64 `yaml:"epoch"`
	GM              float64 `yaml:"gm"`
}

// PlacementSpec places fixed and sandbox frames.
type PlacementSpec struct {
	Lat         float64   `yaml:"lat"`
	Lng         float64   `yaml:"lng"`
	Altitude    float64   `yaml:"altitude"`
	Heading     float64   `yaml:"heading"`
	Pitch       float64   `yaml:"pitch"`
	Roll        float64   `yaml:"roll"`
	Scale       float64   `yaml:"scale"`
	Translation []float64 `yaml:"translation"`
}

// TrajectorySpec is one trajectory sample; Position is metres.
type TrajectorySpec struct {
	JulianDate float64   `yaml:"jd"`
	Position   []float64 `yaml:"position"`
}

// Place is a named camera target.
type Place struct {
	Name   string     `yaml:"name"`
	Mode   string     `yaml:"mode"`
	Camera CameraSpec `yaml:"camera"`
}

// CameraSpec is the serialised CameraState. Rotation and Angle are degrees.
type CameraSpec struct {
	Lat        float64   `yaml:"lat"`
	Lng        float64   `yaml:"lng"`
	Zoom       float64   `yaml:"zoom"`
	Rotation   float64   `yaml:"rotation"`
	Angle      float64   `yaml:"angle"`
	Target     string    `yaml:"target"`
	ViewTarget []float64 `yaml:"viewTarget"`
	Opacity    *float64  `yaml:"opacity"`
}

// Load decodes a scene. JSON input is accepted since it is valid YAML.
func Load(r io.Reader) (*Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &s, nil
}

// LoadFile reads and decodes a scene file.
func LoadFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReferenceFrames converts every frame spec, failing on the first invalid
// one.
func (s *Scene) ReferenceFrames() ([]*model.ReferenceFrame, error) {
	out := make([]*model.ReferenceFrame, 0, len(s.Frames))
	for i := range s.Frames {
		f, err := s.Frames[i].ReferenceFrame()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Apply adds the scene's frames to g. Frames may be listed in any order;
// parents are added before children. Parents not defined in the scene
// must already resolve in g. It returns the added names in insertion
// order.
func (s *Scene) Apply(g *kb.FrameGraph) ([]string, error) {
	frames, err := s.ReferenceFrames()
	if err != nil {
		return nil, err
	}
	remaining := make(map[int]bool, len(frames))
	for i := range frames {
		remaining[i] = true
	}
	var added []string
	for len(remaining) > 0 {
		progress := false
		for i, f := range frames {
			if !remaining[i] {
				continue
			}
			parent := s.Frames[i].Parent
			if parent != "" && !g.Exists(parent) && s.defines(parent, remaining) {
				continue
			}
			if err := g.Add(f, parent); err != nil {
				return added, fmt.Errorf("add frame %q: %w", f.Name, err)
			}
			delete(remaining, i)
			added = append(added, f.Name)
			progress = true
		}
		if !progress {
			return added, fmt.Errorf("%w: parent cycle among %d frames", ErrInvalidScene, len(remaining))
		}
	}
	return added, nil
}

// defines reports whether a not-yet-added frame in the scene is called
// name.
func (s *Scene) defines(name string, remaining map[int]bool) bool {
	for i := range remaining {
		if s.Frames[i].Name == name {
			return true
		}
	}
	return false
}

// Place returns the named place.
func (s *Scene) Place(name string) (Place, bool) {
	for _, p := range s.Places {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Place{}, false
}

// ReferenceFrame validates the spec and builds the frame.
func (fs FrameSpec) ReferenceFrame() (*model.ReferenceFrame, error) {
	if fs.Name == "" {
		return nil, fmt.Errorf("%w: frame without a name", ErrInvalidScene)
	}
	kind := model.FrameIdentity
	if fs.Kind != "" {
		k, err := model.ParseFrameKind(strings.ToLower(fs.Kind))
		if err != nil {
			return nil, fmt.Errorf("%w: frame %q: %v", ErrInvalidScene, fs.Name, err)
		}
		kind = k
	}
	f := &model.ReferenceFrame{
		Name:             fs.Name,
		Kind:             kind,
		MeanRadius:       fs.Radius,
		RotationalPeriod: fs.RotationalPeriod,
		RotationEpoch:    fs.RotationEpoch,
		Oblateness:       fs.Oblateness,
		ShowOrbitPath:    fs.ShowOrbitPath,
	}
	if fs.Color != "" {
		c, err := ParseColor(fs.Color)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %q: %v", ErrInvalidScene, fs.Name, err)
		}
		f.Color = c
	}

	switch len(fs.TLE) {
	case 0:
	case 2:
		tle, err := core.ParseTLE(fs.TLE[0], fs.TLE[1])
		if err != nil {
			return nil, fmt.Errorf("%w: frame %q: %w", ErrInvalidScene, fs.Name, err)
		}
		f.TLELine1, f.TLELine2 = fs.TLE[0], fs.TLE[1]
		f.Elements = tle.Elements()
	default:
		return nil, fmt.Errorf("%w: frame %q: tle needs exactly two lines, got %d", ErrInvalidScene, fs.Name, len(fs.TLE))
	}

	if e := fs.Elements; e != nil {
		a := e.SemiMajorAxis
		if a == 0 {
			a = e.SemiMajorAxisAU * core.MetersPerAU
		}
		f.Elements = model.OrbitalElements{
			SemiMajorAxis:            a,
			Eccentricity:             e.Eccentricity,
			Inclination:              e.Inclination,
			LongitudeOfAscendingNode: e.AscendingNode,
			ArgumentOfPeriapsis:      e.ArgPeriapsis,
			MeanAnomalyAtEpoch:       e.MeanAnomaly,
			MeanDailyMotion:          e.MeanDailyMotion,
			Epoch:                    e.Epoch,
			GM:                       e.GM,
		}
	}
	if (kind == model.FrameOrbital || kind == model.FrameSynodic) && !f.HasTLE() && !f.Elements.Closed() {
		return nil, fmt.Errorf("%w: frame %q: %s frame needs a closed orbit", ErrInvalidScene, fs.Name, kind)
	}

	if p := fs.Placement; p != nil {
		t, err := vec(p.Translation)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %q translation: %v", ErrInvalidScene, fs.Name, err)
		}
		f.Placement = model.Placement{
			Lat: p.Lat, Lng: p.Lng, Altitude: p.Altitude,
			Heading: p.Heading, Pitch: p.Pitch, Roll: p.Roll,
			Scale: p.Scale, Translation: t,
		}
	}

	for i, ts := range fs.Trajectory {
		pos, err := vec(ts.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %q trajectory[%d]: %v", ErrInvalidScene, fs.Name, i, err)
		}
		if i > 0 && ts.JulianDate <= fs.Trajectory[i-1].JulianDate {
			return nil, fmt.Errorf("%w: frame %q trajectory must be strictly increasing in time", ErrInvalidScene, fs.Name)
		}
		f.Trajectory = append(f.Trajectory, model.TrajectorySample{JulianDate: ts.JulianDate, Position: pos})
	}
	if kind == model.FrameTrajectory && len(f.Trajectory) == 0 {
		return nil, fmt.Errorf("%w: frame %q: trajectory frame without samples", ErrInvalidScene, fs.Name)
	}
	return f, nil
}

// ViewMode parses the place's mode; empty means sky.
func (p Place) ViewMode() (model.ViewMode, error) {
	m, err := model.ParseViewMode(p.Mode)
	if err != nil {
		return m, fmt.Errorf("%w: place %q: %v", ErrInvalidScene, p.Name, err)
	}
	return m, nil
}

// CameraState converts the place's camera, clamped to its mode. Opacity
// defaults to 1.
func (p Place) CameraState() (model.CameraState, error) {
	mode, err := p.ViewMode()
	if err != nil {
		return model.CameraState{}, err
	}
	vt, err := vec(p.Camera.ViewTarget)
	if err != nil {
		return model.CameraState{}, fmt.Errorf("%w: place %q viewTarget: %v", ErrInvalidScene, p.Name, err)
	}
	opacity := 1.0
	if p.Camera.Opacity != nil {
		opacity = *p.Camera.Opacity
	}
	c := model.CameraState{
		Lat:         p.Camera.Lat,
		Lng:         p.Camera.Lng,
		Zoom:        p.Camera.Zoom,
		Rotation:    p.Camera.Rotation * core.DegToRad,
		Angle:       p.Camera.Angle * core.DegToRad,
		TargetFrame: p.Camera.Target,
		ViewTarget:  vt,
		Opacity:     opacity,
	}
	return c.Clamp(mode), nil
}

func vec(v []float64) (r3.Vec, error) {
	switch len(v) {
	case 0:
		return r3.Vec{}, nil
	case 3:
		return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return r3.Vec{}, fmt.Errorf("want 3 components, got %d", len(v))
	}
}

// ParseColor parses #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
