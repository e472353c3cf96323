package view

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/skyframe/model"
	"github.com/signalsfoundry/skyframe/timectrl"
)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func TestSlewEndpoints(t *testing.T) {
	from := model.CameraState{Lat: 10, Lng: 20, Zoom: 60, Rotation: 0.3, Angle: -0.2}
	to := model.CameraState{Lat: -20, Lng: 100, Zoom: 2, Rotation: -0.1, Angle: 0}
	s := NewSlew(from, to)

	start := s.CurrentPosition(0)
	for name, pair := range map[string][2]float64{
		"lat":      {start.Lat, from.Lat},
		"lng":      {start.Lng, from.Lng},
		"zoom":     {start.Zoom, from.Zoom},
		"rotation": {start.Rotation, from.Rotation},
		"angle":    {start.Angle, from.Angle},
	} {
		if !scalar.EqualWithinAbs(pair[0], pair[1], 1e-9) {
			t.Fatalf("start %s = %v, want %v", name, pair[0], pair[1])
		}
	}
	if s.Complete() {
		t.Fatalf("slew complete at start")
	}

	end := s.CurrentPosition(s.MoveTime())
	if !s.Complete() {
		t.Fatalf("slew not complete at MoveTime")
	}
	if end != to {
		t.Fatalf("end = %+v, want %+v", end, to)
	}
}

func TestSlewScenarioPhases(t *testing.T) {
	from := model.CameraState{Lat: 0, Lng: 0, Zoom: 700}
	to := model.CameraState{Lat: 45, Lng: 170, Zoom: 1}

	fired := 0
	var firedAt time.Duration
	var elapsed time.Duration
	s := NewSlew(from, to, WithMidpoint(func() {
		fired++
		firedAt = elapsed
	}))

	if s.Apex() != MaxApexZoom {
		t.Fatalf("apex = %v, want %v", s.Apex(), MaxApexZoom)
	}
	up, travel, down := s.Phases()
	if !scalar.EqualWithinAbs(up.Seconds(), 0.576, 0.01) {
		t.Fatalf("up = %v", up)
	}
	if !scalar.EqualWithinAbs(travel.Seconds(), 6.84, 0.01) {
		t.Fatalf("travel = %v", travel)
	}
	if !scalar.EqualWithinAbs(down.Seconds(), 5.09, 0.01) {
		t.Fatalf("down = %v", down)
	}
	total := s.MoveTime().Seconds()
	if !scalar.EqualWithinAbs(total, 12.51, 0.02) {
		t.Fatalf("total = %v", total)
	}

	elapsed = seconds(total / 2)
	half := s.CurrentPosition(elapsed)
	if !scalar.EqualWithinAbs(half.Zoom, 360, 1e-9) {
		t.Fatalf("zoom at half time = %v, want 360", half.Zoom)
	}
	if fired != 0 {
		t.Fatalf("midpoint fired during travel")
	}

	prevLog := math.Log2(from.Zoom)
	for i := 0; i <= 200; i++ {
		elapsed = seconds(total * float64(i) / 200)
		p := s.CurrentPosition(elapsed)
		l := math.Log2(p.Zoom)
		// Zooming from 700 to 360 then down to 1 never zooms back out.
		if l > prevLog+1e-9 {
			t.Fatalf("log2 zoom increased at step %d: %v > %v", i, l, prevLog)
		}
		prevLog = l
	}
	if fired != 1 {
		t.Fatalf("midpoint fired %d times, want 1", fired)
	}
	if firedAt.Seconds() < (up + travel).Seconds()-1e-6 {
		t.Fatalf("midpoint fired at %v, before descent at %v", firedAt, up+travel)
	}
	if !s.Complete() {
		t.Fatalf("slew not complete")
	}
}

func TestSlewPhaseMonotonicZoomOut(t *testing.T) {
	from := model.CameraState{Lat: 0, Lng: 0, Zoom: 1}
	to := model.CameraState{Lat: 10, Lng: 50, Zoom: 1}
	s := NewSlew(from, to)
	up, _, _ := s.Phases()

	prev := math.Log2(from.Zoom)
	for i := 1; i <= 50; i++ {
		p := s.CurrentPosition(time.Duration(float64(up) * float64(i) / 50))
		l := math.Log2(p.Zoom)
		if l < prev-1e-9 {
			t.Fatalf("ascend zoom decreased at %d", i)
		}
		prev = l
	}
}

func TestSlewTakesShortWayAroundDateline(t *testing.T) {
	from := model.CameraState{Lat: 0, Lng: 170, Zoom: 10}
	to := model.CameraState{Lat: 0, Lng: -170, Zoom: 10}
	s := NewSlew(from, to)
	total := s.MoveTime()
	for i := 0; i < 100; i++ {
		p := s.CurrentPosition(time.Duration(float64(total) * float64(i) / 100))
		if p.Lng < 170-1e-9 || p.Lng > 190+1e-9 {
			t.Fatalf("step %d lng = %v, want within [170,190]", i, p.Lng)
		}
	}
	if end := s.CurrentPosition(total); end.Lng != -170 {
		t.Fatalf("end lng = %v", end.Lng)
	}
}

func TestSlewGalacticEndpoints(t *testing.T) {
	from := model.CameraState{Lat: 30, Lng: 0, Zoom: 60}
	to := model.CameraState{Lat: -10, Lng: 120, Zoom: 5}
	s := NewSlew(from, to, WithGalactic(true))
	start := s.CurrentPosition(0)
	if !scalar.EqualWithinAbs(start.Lat, from.Lat, 1e-9) || !scalar.EqualWithinAbs(start.Lng, from.Lng, 1e-9) {
		t.Fatalf("start = %+v", start)
	}
	total := s.MoveTime()
	for i := 0; i < 50; i++ {
		p := s.CurrentPosition(time.Duration(float64(total) * float64(i) / 50))
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat > 90 || p.Lat < -90 {
			t.Fatalf("step %d = %+v", i, p)
		}
	}
	if end := s.CurrentPosition(total); end != to {
		t.Fatalf("end = %+v", end)
	}
}

func TestSlewUpDelayStretchesDescent(t *testing.T) {
	from := model.CameraState{Lat: 0, Lng: 0, Zoom: 10}
	to := model.CameraState{Lat: 1, Lng: 1, Zoom: 10}
	s := NewSlew(from, to, WithUpDelay(30*time.Second))
	_, _, down := s.Phases()
	if down < 30*time.Second {
		t.Fatalf("down = %v, want at least 30s", down)
	}
}

func TestSlewInPlaceCompletesImmediately(t *testing.T) {
	c := model.CameraState{Lat: 5, Lng: 5, Zoom: 3}
	s := NewSlew(c, c)
	if s.MoveTime() != 0 {
		t.Fatalf("MoveTime = %v", s.MoveTime())
	}
	if got := s.CurrentPosition(0); got != c || !s.Complete() {
		t.Fatalf("got %+v complete=%v", got, s.Complete())
	}
}

func TestSlewReportsClockTime(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, time.Second, timectrl.Accelerated)
	s := NewSlew(model.CameraState{Zoom: 1}, model.CameraState{Lat: 10, Zoom: 1}, WithClock(tc))
	if got := s.CurrentDateTime(time.Second); !got.Equal(start) {
		t.Fatalf("CurrentDateTime = %v, want %v", got, start)
	}
	if s.DrivesClock() {
		t.Fatalf("slew should not drive the clock")
	}
	if got := NewSlew(model.CameraState{Zoom: 1}, model.CameraState{Zoom: 1}).CurrentDateTime(0); !got.IsZero() {
		t.Fatalf("clockless slew time = %v", got)
	}
}
