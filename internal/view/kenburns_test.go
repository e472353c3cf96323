package view

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/skyframe/model"
)

func TestKenBurnsTimeAndPosition(t *testing.T) {
	t0 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(48 * time.Hour)
	from := model.CameraState{Lat: 0, Lng: 0, Zoom: 100}
	to := model.CameraState{Lat: 20, Lng: 40, Zoom: 1, TargetFrame: "Jupiter"}

	mid := 0
	k := NewKenBurns(from, to, 10*time.Second, t0, t1, Linear, WithKenBurnsMidpoint(func() { mid++ }))

	if got := k.CurrentDateTime(0); !got.Equal(t0) {
		t.Fatalf("start time = %v", got)
	}
	if got := k.CurrentDateTime(5 * time.Second); !got.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("half time = %v", got)
	}

	q := k.CurrentPosition(2500 * time.Millisecond)
	// Direction settles twice as fast while time is moving.
	if !scalar.EqualWithinAbs(q.Lat, 10, 1e-9) {
		t.Fatalf("quarter lat = %v, want 10", q.Lat)
	}
	if mid != 0 {
		t.Fatalf("midpoint fired early")
	}
	k.CurrentPosition(5 * time.Second)
	k.CurrentPosition(6 * time.Second)
	if mid != 1 {
		t.Fatalf("midpoint fired %d times", mid)
	}
	if k.Complete() {
		t.Fatalf("complete before duration")
	}

	end := k.CurrentPosition(10 * time.Second)
	if end != to || !k.Complete() {
		t.Fatalf("end = %+v complete=%v", end, k.Complete())
	}
	if got := k.CurrentDateTime(20 * time.Second); !got.Equal(t1) {
		t.Fatalf("end time = %v", got)
	}
	if !k.DrivesClock() {
		t.Fatalf("KenBurns should drive the clock")
	}
}

func TestKenBurnsFixedTimeUsesEasedDirection(t *testing.T) {
	t0 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	from := model.CameraState{Lat: 0, Zoom: 1}
	to := model.CameraState{Lat: 20, Zoom: 1}
	k := NewKenBurns(from, to, 4*time.Second, t0, t0, EaseInOut)
	p := k.CurrentPosition(2 * time.Second)
	if !scalar.EqualWithinAbs(p.Lat, 10, 1e-9) {
		t.Fatalf("mid lat = %v", p.Lat)
	}
	if got := k.CurrentDateTime(2 * time.Second); !got.Equal(t0) {
		t.Fatalf("time moved: %v", got)
	}
}

func TestKenBurnsZeroDuration(t *testing.T) {
	to := model.CameraState{Lat: 1, Zoom: 2}
	k := NewKenBurns(model.CameraState{Zoom: 1}, to, 0, time.Time{}, time.Time{}, Linear)
	if got := k.CurrentPosition(0); got != to || !k.Complete() {
		t.Fatalf("got %+v", got)
	}
}
