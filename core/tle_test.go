package core

import (
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func TestParseTLE_Fields(t *testing.T) {
	tle, err := ParseTLE(issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseTLE: %v", err)
	}
	if tle.CatalogNumber != 25544 || tle.Classification != 'U' || tle.IntlDesignator != "98067A" {
		t.Fatalf("identification fields = %d %c %q", tle.CatalogNumber, tle.Classification, tle.IntlDesignator)
	}
	if tle.EpochYear != 2008 || !scalar.EqualWithinAbs(tle.EpochDay, 264.51782528, 1e-12) {
		t.Fatalf("epoch = %d day %v", tle.EpochYear, tle.EpochDay)
	}
	if !scalar.EqualWithinAbs(tle.MeanMotionDot, -0.00002182, 1e-15) {
		t.Fatalf("mean motion derivative = %v", tle.MeanMotionDot)
	}
	if !scalar.EqualWithinAbs(tle.BStar, -0.11606e-4, 1e-15) || tle.MeanMotionDDot != 0 {
		t.Fatalf("bstar = %v, nddot = %v", tle.BStar, tle.MeanMotionDDot)
	}
	if !scalar.EqualWithinAbs(tle.Eccentricity, 0.0006703, 1e-12) {
		t.Fatalf("eccentricity = %v", tle.Eccentricity)
	}
	if tle.Inclination != 51.6416 || tle.RAAN != 247.4627 || tle.ArgPerigee != 130.536 || tle.MeanAnomaly != 325.0288 {
		t.Fatalf("angles = %v %v %v %v", tle.Inclination, tle.RAAN, tle.ArgPerigee, tle.MeanAnomaly)
	}
	if tle.MeanMotion != 15.72125391 || tle.RevolutionNum != 56353 || tle.ElementSetNumber != 292 {
		t.Fatalf("mean motion %v rev %d set %d", tle.MeanMotion, tle.RevolutionNum, tle.ElementSetNumber)
	}
}

func TestParseTLE_EpochAndElements(t *testing.T) {
	tle, err := ParseTLE(issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseTLE: %v", err)
	}
	// 2008 January 0.0 is JD 2454465.5.
	if jd := tle.EpochJD(); !scalar.EqualWithinAbs(jd, 2454465.5+264.51782528, 1e-8) {
		t.Fatalf("EpochJD = %v", jd)
	}
	el := tle.Elements()
	if !scalar.EqualWithinAbs(el.SemiMajorAxis, 6.731e6, 1e4) {
		t.Fatalf("semi-major axis = %v m", el.SemiMajorAxis)
	}
	if !scalar.EqualWithinAbs(el.MeanDailyMotion, 15.72125391*360, 1e-9) {
		t.Fatalf("mean daily motion = %v", el.MeanDailyMotion)
	}
}

func TestSerializeTLE_RoundTrip(t *testing.T) {
	tle, err := ParseTLE(issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseTLE: %v", err)
	}
	l1, l2, err := SerializeTLE(tle)
	if err != nil {
		t.Fatalf("SerializeTLE: %v", err)
	}
	if l1 != issLine1 {
		t.Fatalf("line 1 mismatch:\n got %q\nwant %q", l1, issLine1)
	}
	if l2 != issLine2 {
		t.Fatalf("line 2 mismatch:\n got %q\nwant %q", l2, issLine2)
	}
}

func TestSerializeTLE_FromElements(t *testing.T) {
	meta, err := ParseTLE(issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseTLE: %v", err)
	}
	el := meta.Elements()
	el.Inclination = 97.5
	l1, l2, err := SerializeTLE(TLEFromElements(el, meta))
	if err != nil {
		t.Fatalf("SerializeTLE: %v", err)
	}
	back, err := ParseTLE(l1, l2)
	if err != nil {
		t.Fatalf("re-parse of serialized lines: %v", err)
	}
	if back.Inclination != 97.5 || !scalar.EqualWithinAbs(back.MeanMotion, meta.MeanMotion, 1e-8) {
		t.Fatalf("re-parsed inclination %v mean motion %v", back.Inclination, back.MeanMotion)
	}
	if !scalar.EqualWithinAbs(back.EpochJD(), meta.EpochJD(), 1e-7) {
		t.Fatalf("epoch drifted: %v vs %v", back.EpochJD(), meta.EpochJD())
	}
}

func TestSerializeTLE_Rejects(t *testing.T) {
	tle, _ := ParseTLE(issLine1, issLine2)
	tle.Eccentricity = 1.2
	_, _, err := SerializeTLE(tle)
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Field != "eccentricity" {
		t.Fatalf("expected eccentricity FormatError, got %v", err)
	}
}

func TestParseTLE_Errors(t *testing.T) {
	badChecksum := issLine1[:68] + "0"
	cases := []struct {
		name   string
		l1, l2 string
		line   int
		field  string
	}{
		{"checksum", badChecksum, issLine2, 1, "checksum"},
		{"short", issLine1[:60], issLine2, 1, "length"},
		{"swapped", issLine2, issLine1, 1, "line number"},
		{"catalog mismatch", issLine1, fixChecksum("2 25545" + issLine2[7:68]), 2, "catalog number"},
		{"garbage inclination", issLine1, fixChecksum(issLine2[:8] + " 51.6x16" + issLine2[16:68]), 2, "inclination"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseTLE(c.l1, c.l2)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %v", err)
			}
			if fe.Line != c.line || fe.Field != c.field {
				t.Fatalf("error = line %d field %q, want line %d field %q", fe.Line, fe.Field, c.line, c.field)
			}
		})
	}
}

func fixChecksum(line68 string) string {
	return line68 + string(rune('0'+Checksum(line68)))
}

func TestChecksum(t *testing.T) {
	if got := Checksum(issLine1); got != 7 {
		t.Fatalf("Checksum(line1) = %d, want 7", got)
	}
	if got := Checksum(issLine2); got != 7 {
		t.Fatalf("Checksum(line2) = %d, want 7", got)
	}
}

func TestParseTLESet(t *testing.T) {
	text := strings.Join([]string{
		"ISS (ZARYA)",
		issLine1,
		issLine2,
		"",
		"0 ISS AGAIN",
		issLine1 + "\r",
		issLine2,
		issLine1,
		issLine2,
	}, "\n")
	entries, err := ParseTLESet(text)
	if err != nil {
		t.Fatalf("ParseTLESet: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	names := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	if names[0] != "ISS (ZARYA)" || names[1] != "ISS AGAIN" || names[2] != "" {
		t.Fatalf("names = %q", names)
	}
	if entries[1].Line1 != issLine1 {
		t.Fatalf("raw line not trimmed: %q", entries[1].Line1)
	}
}

func TestParseTLESet_Truncated(t *testing.T) {
	if _, err := ParseTLESet("SAT\n" + issLine1 + "\n"); err == nil {
		t.Fatalf("expected error for missing line 2")
	}
	_, err := ParseTLESet("SAT\n" + issLine1[:68] + "1\n" + issLine2)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected wrapped *FormatError, got %v", err)
	}
}
