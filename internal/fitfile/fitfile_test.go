package fitfile

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tormoder/fit"
)

// testRecord returns a record with every field the parser reads set to
// its invalid sentinel, so tests only fill in what they care about.
func testRecord() *fit.RecordMsg {
	return &fit.RecordMsg{
		Altitude:         math.MaxUint16,
		EnhancedAltitude: math.MaxUint32,
		Speed:            math.MaxUint16,
		EnhancedSpeed:    math.MaxUint32,
		HeartRate:        math.MaxUint8,
		Cadence:          math.MaxUint8,
		Temperature:      math.MaxInt8,
	}
}

func testSession() *fit.SessionMsg {
	return &fit.SessionMsg{
		Sport:            fit.SportInvalid,
		TotalTimerTime:   math.MaxUint32,
		TotalElapsedTime: math.MaxUint32,
		TotalDistance:    math.MaxUint32,
		TotalAscent:      math.MaxUint16,
		TotalDescent:     math.MaxUint16,
		TotalCalories:    math.MaxUint16,
		MaxHeartRate:     math.MaxUint8,
		AvgHeartRate:     math.MaxUint8,
		MaxCadence:       math.MaxUint8,
		AvgCadence:       math.MaxUint8,
		MaxSpeed:         math.MaxUint16,
		AvgSpeed:         math.MaxUint16,
		EnhancedMaxSpeed: math.MaxUint32,
		EnhancedAvgSpeed: math.MaxUint32,
	}
}

func testFit(session *fit.SessionMsg, records ...*fit.RecordMsg) *Fit {
	return &Fit{
		file:     &fit.File{},
		activity: &fit.ActivityFile{Sessions: []*fit.SessionMsg{session}, Records: records},
	}
}

func TestParseInvalidData(t *testing.T) {
	_, err := Parse([]byte("definitely not a fit container"))
	if err == nil {
		t.Fatal("Parse should fail on garbage input")
	}
	if !errors.Is(err, ErrNotFit) {
		t.Errorf("error should wrap ErrNotFit, got %v", err)
	}
}

func TestLoadSummary(t *testing.T) {
	session := testSession()
	session.Sport = fit.SportCycling
	session.StartTime = time.Date(2018, 12, 30, 10, 11, 15, 0, time.UTC)
	session.TotalTimerTime = 3600000 // ms
	session.TotalElapsedTime = 3700000
	session.TotalDistance = 6000000 // cm
	session.TotalAscent = 1200
	session.TotalDescent = 1100
	session.TotalCalories = 2000
	session.MaxHeartRate = 180
	session.AvgHeartRate = 137
	session.MaxCadence = 111
	session.AvgCadence = 90
	session.EnhancedMaxSpeed = 16666 // mm/s
	session.EnhancedAvgSpeed = 7638

	f := testFit(session)
	f.LoadSummary()
	s := f.Summary

	if !strings.EqualFold(s.Sport, "cycling") {
		t.Errorf("Sport = %q", s.Sport)
	}
	if s.Start == nil || !s.Start.Equal(session.StartTime) {
		t.Errorf("Start = %v", s.Start)
	}
	if s.Duration == nil || *s.Duration != 3600 {
		t.Errorf("Duration = %v", s.Duration)
	}
	if s.Elapsed == nil || *s.Elapsed != 3700 {
		t.Errorf("Elapsed = %v", s.Elapsed)
	}
	if s.Distance == nil || *s.Distance != 60000 {
		t.Errorf("Distance = %v", s.Distance)
	}
	if s.Uphill == nil || *s.Uphill != 1200 {
		t.Errorf("Uphill = %v", s.Uphill)
	}
	if s.Downhill == nil || *s.Downhill != 1100 {
		t.Errorf("Downhill = %v", s.Downhill)
	}
	if s.Calories == nil || *s.Calories != 2000 {
		t.Errorf("Calories = %v", s.Calories)
	}
	if s.MaxHR == nil || *s.MaxHR != 180 || s.AvgHR == nil || *s.AvgHR != 137 {
		t.Errorf("hr = %v/%v", s.MaxHR, s.AvgHR)
	}
	if s.MaxCad == nil || *s.MaxCad != 111 || s.AvgCad == nil || *s.AvgCad != 90 {
		t.Errorf("cad = %v/%v", s.MaxCad, s.AvgCad)
	}
	if s.MaxSpeed == nil || *s.MaxSpeed != 16.666 {
		t.Errorf("MaxSpeed = %v", s.MaxSpeed)
	}
	if s.AvgSpeed == nil || *s.AvgSpeed != 7.638 {
		t.Errorf("AvgSpeed = %v", s.AvgSpeed)
	}
	// trackers start empty
	if s.MinHR != nil || s.MinCad != nil || s.MinATemp != nil {
		t.Error("per-point minimum trackers should start nil")
	}
	if s.MaxATemp != 0 || s.AvgATemp != 0 {
		t.Error("temperature aggregates should start at zero")
	}
}

func TestLoadSummaryMissingFields(t *testing.T) {
	f := testFit(testSession())
	f.LoadSummary()
	s := f.Summary

	if s.Sport != "unknown" {
		t.Errorf("Sport = %q, want unknown", s.Sport)
	}
	if s.Start != nil || s.Duration != nil || s.Elapsed != nil || s.Distance != nil {
		t.Error("missing session fields should stay nil")
	}
	if s.Uphill != nil || s.Downhill != nil || s.Calories != nil {
		t.Error("missing elevation/calorie fields should stay nil")
	}
	if s.MaxHR != nil || s.AvgHR != nil || s.MaxCad != nil || s.AvgCad != nil {
		t.Error("missing hr/cad fields should stay nil")
	}
	if s.MaxSpeed != nil || s.AvgSpeed != nil {
		t.Error("missing speed fields should stay nil")
	}
}

func TestLoadSummaryLegacySpeedFallback(t *testing.T) {
	// enhanced max missing, legacy max present; enhanced avg present
	session := testSession()
	session.MaxSpeed = 18666
	session.EnhancedAvgSpeed = 7638

	f := testFit(session)
	f.LoadSummary()

	if got := f.Summary.MaxSpeed; got == nil || *got != 18.666 {
		t.Errorf("MaxSpeed = %v, want legacy value rescaled to 18.666", got)
	}
	if got := f.Summary.AvgSpeed; got == nil || *got != 7.638 {
		t.Errorf("AvgSpeed = %v, want enhanced 7.638", got)
	}
}

func TestName(t *testing.T) {
	f := &Fit{Summary: Summary{Sport: "cycling", ProfileName: "Synapse"}}
	if got := f.Name(); got != "Synapse cycling" {
		t.Errorf("Name() = %q", got)
	}
	f.Summary.ProfileName = ""
	if got := f.Name(); got != "cycling" {
		t.Errorf("Name() = %q", got)
	}
}

func TestEffectiveHeartRate(t *testing.T) {
	tests := []struct {
		previous, current, want int
	}{
		{0, 90, 90},
		{90, 110, 110},
		{140, 0, 140}, // dropout, keep previous reading
		{0, 0, 0},     // dropout on the very first sample stays zero
	}
	for _, tt := range tests {
		if got := effectiveHeartRate(tt.previous, tt.current); got != tt.want {
			t.Errorf("effectiveHeartRate(%d, %d) = %d; want %d",
				tt.previous, tt.current, got, tt.want)
		}
	}
}

func TestBuildTrackXMLHeartRateDropout(t *testing.T) {
	start := time.Date(2018, 12, 30, 10, 11, 15, 0, time.UTC)
	rates := []uint8{90, 110, 140, 0}

	var records []*fit.RecordMsg
	for i, hr := range rates {
		r := testRecord()
		r.Timestamp = start.Add(time.Duration(i) * time.Second)
		r.PositionLat = fit.NewLatitudeDegrees(37.5 + float64(i)*0.001)
		r.PositionLong = fit.NewLongitudeDegrees(-4.9)
		r.HeartRate = hr
		records = append(records, r)
	}

	f := testFit(testSession(), records...)
	f.Summary = Summary{Sport: "cycling", ProfileName: "Synapse"}

	out, err := f.BuildTrackXML()
	if err != nil {
		t.Fatal(err)
	}

	if got := strings.Count(out, ">140</gpxtpx:hr>"); got != 2 {
		t.Errorf("expected the 140 reading twice (original plus substituted), got %d:\n%s", got, out)
	}
	if strings.Contains(out, ">0</gpxtpx:hr>") {
		t.Errorf("zero heart rate readings must not survive:\n%s", out)
	}
	if got := strings.Count(out, "<trkpt "); got != 4 {
		t.Errorf("expected 4 track points, got %d", got)
	}
	if !strings.Contains(out, "<name>Synapse cycling</name>") {
		t.Error("track name missing")
	}
	if got := f.Summary.MinHR; got == nil || *got != 90 {
		t.Errorf("MinHR = %v, want 90", got)
	}
}

func TestBuildTrackXMLDropsPositionlessSamples(t *testing.T) {
	start := time.Date(2018, 12, 30, 10, 11, 15, 0, time.UTC)

	with := testRecord()
	with.Timestamp = start
	with.PositionLat = fit.NewLatitudeDegrees(37.5)
	with.PositionLong = fit.NewLongitudeDegrees(-4.9)
	with.Temperature = 20
	with.Cadence = 90

	// no position: dropped from the track, still aggregated
	without := testRecord()
	without.Timestamp = start.Add(time.Second)
	without.Temperature = 10
	without.Cadence = 80

	f := testFit(testSession(), with, without)
	f.Summary = Summary{Sport: "cycling"}

	out, err := f.BuildTrackXML()
	if err != nil {
		t.Fatal(err)
	}

	if got := strings.Count(out, "<trkpt "); got != 1 {
		t.Errorf("expected 1 emitted track point, got %d", got)
	}
	if got := f.Summary.MinATemp; got == nil || *got != 10 {
		t.Errorf("MinATemp = %v, want 10 (dropped sample still aggregated)", got)
	}
	if got := f.Summary.MaxATemp; got != 20 {
		t.Errorf("MaxATemp = %d, want 20", got)
	}
	if got := f.Summary.AvgATemp; got != 15 {
		t.Errorf("AvgATemp = %d, want integer-rounded 15", got)
	}
	if got := f.Summary.MinCad; got == nil || *got != 80 {
		t.Errorf("MinCad = %v, want 80", got)
	}
}

func TestBuildTrackXMLZeroFill(t *testing.T) {
	r := testRecord()
	r.Timestamp = time.Date(2018, 12, 30, 10, 11, 15, 0, time.UTC)
	r.PositionLat = fit.NewLatitudeDegrees(37.5)
	r.PositionLong = fit.NewLongitudeDegrees(-4.9)

	f := testFit(testSession(), r)
	out, err := f.BuildTrackXML()
	if err != nil {
		t.Fatal(err)
	}

	// device omitted every sensor: extension values are zero-filled
	for _, want := range []string{
		"<gpxtpx:atemp>0</gpxtpx:atemp>",
		"<gpxtpx:hr>0</gpxtpx:hr>",
		"<gpxtpx:cad>0</gpxtpx:cad>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<ele>") {
		t.Error("missing altitude should not emit an ele element")
	}
}
