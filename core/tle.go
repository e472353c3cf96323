package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/signalsfoundry/skyframe/model"
)

// TLELineLength is the fixed width of a two-line element line.
const TLELineLength = 69

// FormatError reports malformed two-line element text.
type FormatError struct {
	Line   int // 1 or 2; 0 when not line specific
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("tle: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("tle line %d: %s: %s", e.Line, e.Field, e.Reason)
}

// TLE is a decoded two-line element set. Angles are degrees, MeanMotion is
// revolutions per day.
type TLE struct {
	Name             string
	CatalogNumber    int
	Classification   byte
	IntlDesignator   string
	EpochYear        int // four digit
	EpochDay         float64
	MeanMotionDot    float64
	MeanMotionDDot   float64
	BStar            float64
	EphemerisType    int
	ElementSetNumber int

	Inclination   float64
	RAAN          float64
	Eccentricity  float64
	ArgPerigee    float64
	MeanAnomaly   float64
	MeanMotion    float64
	RevolutionNum int
}

// Checksum computes the mod-10 checksum over the first 68 columns: digits
// count their value, minus signs count one, everything else zero.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < TLELineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func checkLine(line string, n int) error {
	if len(line) != TLELineLength {
		return &FormatError{n, "length", fmt.Sprintf("got %d columns, want %d", len(line), TLELineLength)}
	}
	if line[0] != byte('0'+n) || line[1] != ' ' {
		return &FormatError{n, "line number", fmt.Sprintf("line must start with %q", fmt.Sprintf("%d ", n))}
	}
	want := line[TLELineLength-1]
	if want < '0' || want > '9' {
		return &FormatError{n, "checksum", fmt.Sprintf("column 69 is %q, not a digit", want)}
	}
	if got := Checksum(line); got != int(want-'0') {
		return &FormatError{n, "checksum", fmt.Sprintf("computed %d, line says %c", got, want)}
	}
	return nil
}

// columns returns the 1-based inclusive column range of line, trimmed.
func columns(line string, from, to int) string {
	return strings.TrimSpace(line[from-1 : to])
}

type fieldParser struct {
	line int
	err  error
}

func (p *fieldParser) float(s, field string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = &FormatError{p.line, field, fmt.Sprintf("invalid number %q", s)}
	}
	return v
}

func (p *fieldParser) int(s, field string) int {
	if p.err != nil {
		return 0
	}
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.err = &FormatError{p.line, field, fmt.Sprintf("invalid integer %q", s)}
	}
	return v
}

// decimal parses a field with an assumed leading decimal point.
func (p *fieldParser) decimal(s, field string) float64 {
	return p.float("0."+s, field)
}

// exponent parses the compact "±NNNNN±N" form, e.g. "-11606-4" = -0.11606e-4.
func (p *fieldParser) exponent(s, field string) float64 {
	if p.err != nil {
		return 0
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 3 {
		p.err = &FormatError{p.line, field, fmt.Sprintf("invalid exponent field %q", s)}
		return 0
	}
	mant := p.decimal(s[:len(s)-2], field)
	exp := p.int(strings.TrimPrefix(s[len(s)-2:], "+"), field)
	return sign * mant * math.Pow(10, float64(exp))
}

// ParseTLE decodes a two-line element set. Any malformed field or checksum
// mismatch returns a *FormatError and a zero TLE.
func ParseTLE(line1, line2 string) (TLE, error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")
	if err := checkLine(line1, 1); err != nil {
		return TLE{}, err
	}
	if err := checkLine(line2, 2); err != nil {
		return TLE{}, err
	}

	p1 := &fieldParser{line: 1}
	var t TLE
	t.CatalogNumber = p1.int(columns(line1, 3, 7), "catalog number")
	t.Classification = line1[7]
	t.IntlDesignator = columns(line1, 10, 17)
	yy := p1.int(columns(line1, 19, 20), "epoch year")
	t.EpochDay = p1.float(columns(line1, 21, 32), "epoch day")
	t.MeanMotionDot = p1.float(strings.Replace(columns(line1, 34, 43), " ", "", -1), "mean motion derivative")
	t.MeanMotionDDot = p1.exponent(columns(line1, 45, 52), "mean motion second derivative")
	t.BStar = p1.exponent(columns(line1, 54, 61), "bstar")
	t.EphemerisType = p1.int(columns(line1, 63, 63), "ephemeris type")
	t.ElementSetNumber = p1.int(columns(line1, 65, 68), "element set number")
	if p1.err != nil {
		return TLE{}, p1.err
	}
	if yy < 57 {
		t.EpochYear = 2000 + yy
	} else {
		t.EpochYear = 1900 + yy
	}

	p2 := &fieldParser{line: 2}
	if cat := p2.int(columns(line2, 3, 7), "catalog number"); p2.err == nil && cat != t.CatalogNumber {
		return TLE{}, &FormatError{2, "catalog number", fmt.Sprintf("%d does not match line 1 (%d)", cat, t.CatalogNumber)}
	}
	t.Inclination = p2.float(columns(line2, 9, 16), "inclination")
	t.RAAN = p2.float(columns(line2, 18, 25), "right ascension of node")
	t.Eccentricity = p2.decimal(columns(line2, 27, 33), "eccentricity")
	t.ArgPerigee = p2.float(columns(line2, 35, 42), "argument of perigee")
	t.MeanAnomaly = p2.float(columns(line2, 44, 51), "mean anomaly")
	t.MeanMotion = p2.float(columns(line2, 53, 63), "mean motion")
	t.RevolutionNum = p2.int(columns(line2, 64, 68), "revolution number")
	if p2.err != nil {
		return TLE{}, p2.err
	}
	if t.MeanMotion <= 0 {
		return TLE{}, &FormatError{2, "mean motion", "must be positive"}
	}
	return t, nil
}

// EpochJD returns the element epoch as a Julian date.
func (t TLE) EpochJD() float64 {
	// Day 1.0 is January 1 at 0h, so day 0 of January is the reference.
	return julian.CalendarGregorianToJD(t.EpochYear, 1, 0) + t.EpochDay
}

// Elements converts the set into the frame graph's orbital elements.
func (t TLE) Elements() model.OrbitalElements {
	n := t.MeanMotion * 360
	return model.OrbitalElements{
		SemiMajorAxis:            SemiMajorAxisFromMeanMotion(n, model.EarthGM),
		Eccentricity:             t.Eccentricity,
		Inclination:              t.Inclination,
		LongitudeOfAscendingNode: t.RAAN,
		ArgumentOfPeriapsis:      t.ArgPerigee,
		MeanAnomalyAtEpoch:       t.MeanAnomaly,
		MeanDailyMotion:          n,
		Epoch:                    t.EpochJD(),
		GM:                       model.EarthGM,
	}
}

// TLEFromElements builds a TLE carrying el; identification fields are taken
// from meta.
func TLEFromElements(el model.OrbitalElements, meta TLE) TLE {
	t := meta
	year, _, _ := julian.JDToCalendar(el.Epoch)
	t.EpochYear = year
	t.EpochDay = el.Epoch - julian.CalendarGregorianToJD(year, 1, 0)
	t.Inclination = el.Inclination
	t.RAAN = el.LongitudeOfAscendingNode
	t.Eccentricity = el.Eccentricity
	t.ArgPerigee = el.ArgumentOfPeriapsis
	t.MeanAnomaly = el.MeanAnomalyAtEpoch
	t.MeanMotion = MeanDailyMotion(el) / 360
	return t
}

// SerializeTLE encodes t as two 69-column lines with fresh checksums.
func SerializeTLE(t TLE) (string, string, error) {
	if t.Eccentricity < 0 || t.Eccentricity >= 1 {
		return "", "", &FormatError{2, "eccentricity", "outside [0,1)"}
	}
	if t.CatalogNumber < 0 || t.CatalogNumber > 99999 {
		return "", "", &FormatError{1, "catalog number", "outside 0..99999"}
	}
	if math.Abs(t.MeanMotionDot) >= 1 {
		return "", "", &FormatError{1, "mean motion derivative", "magnitude must be below 1"}
	}
	if t.MeanMotion <= 0 || t.MeanMotion >= 100 {
		return "", "", &FormatError{2, "mean motion", "outside (0,100)"}
	}
	class := t.Classification
	if class == 0 {
		class = 'U'
	}

	l1 := fmt.Sprintf("1 %05d%c %-8s %02d%012.8f %s %s %s %1d %4d",
		t.CatalogNumber, class, t.IntlDesignator,
		t.EpochYear%100, t.EpochDay,
		formatDot(t.MeanMotionDot),
		formatExponent(t.MeanMotionDDot),
		formatExponent(t.BStar),
		t.EphemerisType, t.ElementSetNumber%10000,
	)
	ecc := int(math.Round(t.Eccentricity * 1e7))
	if ecc > 9999999 {
		ecc = 9999999
	}
	l2 := fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		t.CatalogNumber,
		normalizeDegrees(t.Inclination), normalizeDegrees(t.RAAN), ecc,
		normalizeDegrees(t.ArgPerigee), normalizeDegrees(t.MeanAnomaly),
		t.MeanMotion, t.RevolutionNum%100000,
	)
	if len(l1) != TLELineLength-1 {
		return "", "", &FormatError{1, "layout", fmt.Sprintf("encoded %d columns", len(l1))}
	}
	if len(l2) != TLELineLength-1 {
		return "", "", &FormatError{2, "layout", fmt.Sprintf("encoded %d columns", len(l2))}
	}
	l1 += strconv.Itoa(Checksum(l1))
	l2 += strconv.Itoa(Checksum(l2))
	return l1, l2, nil
}

// formatDot renders the first derivative field, e.g. " .00016717".
func formatDot(v float64) string {
	s := fmt.Sprintf("%.8f", math.Abs(v))
	s = strings.TrimPrefix(s, "0")
	if v < 0 {
		return "-" + s
	}
	return " " + s
}

// formatExponent renders the compact exponent field, e.g. " 10270-3". Zero
// is written " 00000-0" as the catalogues do.
func formatExponent(v float64) string {
	if v == 0 {
		return " 00000-0"
	}
	sign := " "
	if v < 0 {
		sign = "-"
	}
	a := math.Abs(v)
	exp := int(math.Floor(math.Log10(a))) + 1
	mant := int(math.Round(a / math.Pow(10, float64(exp)) * 1e5))
	if mant >= 100000 {
		mant /= 10
		exp++
	}
	if exp < -9 {
		return " 00000-0"
	}
	if exp > 9 {
		exp, mant = 9, 99999
	}
	expSign := "+"
	if exp < 0 {
		expSign = "-"
	}
	return fmt.Sprintf("%s%05d%s%d", sign, mant, expSign, absInt(exp))
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	// %8.4f rounds 359.99996 up to 360.0000.
	if d >= 359.99995 {
		d = 0
	}
	return d
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TLEEntry is one element set from a catalogue together with its raw lines.
type TLEEntry struct {
	TLE
	Line1, Line2 string
}

// ParseTLESet reads catalogue text in two-line or three-line form (an
// optional name line, bare or prefixed "0 ", before each pair). Blank lines
// are ignored. The first malformed entry aborts the parse.
func ParseTLESet(text string) ([]TLEEntry, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r ")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	var out []TLEEntry
	name := ""
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if !strings.HasPrefix(l, "1 ") {
			name = strings.TrimSpace(strings.TrimPrefix(l, "0 "))
			continue
		}
		if i+1 >= len(lines) {
			return nil, &FormatError{2, "layout", "line 1 without a following line 2"}
		}
		l2 := lines[i+1]
		i++
		t, err := ParseTLE(l, l2)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", len(out)+1, name, err)
		}
		t.Name = name
		out = append(out, TLEEntry{TLE: t, Line1: l, Line2: l2})
		name = ""
	}
	return out, nil
}
