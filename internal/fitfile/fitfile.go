// Package fitfile decodes single-session FIT activity recordings into
// summary statistics and a regenerated GPX track document.
//
// Only the first session of a file is read. Multi-session files are not
// detected or rejected, the extra sessions are silently ignored.
package fitfile

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/tormoder/fit"

	"github.com/openworkouts/openworkouts-go/internal/gpx"
	"github.com/openworkouts/openworkouts-go/internal/units"
)

var (
	// ErrNotFit marks decode failures: wrong signature, bad header or
	// a truncated container.
	ErrNotFit = errors.New("not a valid fit file")

	// ErrNoSession marks activity files without a session message.
	ErrNoSession = errors.New("fit file has no session")
)

const (
	invalidUint8       = math.MaxUint8
	invalidUint16      = math.MaxUint16
	invalidSemicircles = math.MaxInt32
	invalidTemperature = math.MaxInt8
)

// Summary holds the session-level fields of a FIT recording plus the
// sensor aggregates collected while walking the per-point records.
// Every optional field is nil when the device did not record it.
type Summary struct {
	Sport       string
	ProfileName string // device preset name (multi-bike/multi-activity profiles)
	Start       *time.Time
	Duration    *float64 // active seconds (total timer time)
	Elapsed     *float64 // wall-clock seconds (total elapsed time)
	Distance    *float64 // meters
	Uphill      *float64 // meters
	Downhill    *float64 // meters
	Calories    *int
	MaxHR       *int
	AvgHR       *int
	MaxCad      *int
	AvgCad      *int
	MaxSpeed    *float64 // m/s
	AvgSpeed    *float64 // m/s

	// Filled by the per-record pass in BuildTrackXML.
	MinHR    *int
	MinCad   *int
	MinATemp *int
	MaxATemp int
	AvgATemp int
}

// Fit wraps a decoded FIT activity container.
type Fit struct {
	file     *fit.File
	activity *fit.ActivityFile

	Summary Summary

	hrSamples    []int
	cadSamples   []int
	atempSamples []int
}

// Open reads and decodes the FIT container at path.
func Open(path string) (*Fit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a FIT container from raw bytes. A file that is not a
// valid container, or is truncated, fails with ErrNotFit; an activity
// container without sessions fails with ErrNoSession.
func Parse(data []byte) (*Fit, error) {
	file, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFit, err)
	}

	activity, err := file.Activity()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFit, err)
	}
	if len(activity.Sessions) == 0 {
		return nil, ErrNoSession
	}

	return &Fit{file: file, activity: activity}, nil
}

// LoadSummary extracts the session-level fields from the first session
// of the file. Fields the device did not record stay nil.
func (f *Fit) LoadSummary() {
	session := f.activity.Sessions[0]
	s := Summary{Sport: "unknown"}

	if session.Sport != fit.SportInvalid {
		s.Sport = strings.ToLower(session.Sport.String())
	}

	// The device preset name ("Synapse", "Commuter", ...) some units
	// store with the recording. The product name slot of the file id
	// is where it surfaces after decoding.
	s.ProfileName = f.file.FileId.ProductName

	if start := session.StartTime; !start.IsZero() && !fit.IsBaseTime(start) {
		utc := start.UTC()
		s.Start = &utc
	}

	s.Duration = scaledValue(session.GetTotalTimerTimeScaled())
	s.Elapsed = scaledValue(session.GetTotalElapsedTimeScaled())
	s.Distance = scaledValue(session.GetTotalDistanceScaled())

	if session.TotalAscent != invalidUint16 {
		v := float64(session.TotalAscent)
		s.Uphill = &v
	}
	if session.TotalDescent != invalidUint16 {
		v := float64(session.TotalDescent)
		s.Downhill = &v
	}
	if session.TotalCalories != invalidUint16 {
		v := int(session.TotalCalories)
		s.Calories = &v
	}

	if session.MaxHeartRate != invalidUint8 {
		v := int(session.MaxHeartRate)
		s.MaxHR = &v
	}
	if session.AvgHeartRate != invalidUint8 {
		v := int(session.AvgHeartRate)
		s.AvgHR = &v
	}
	if session.MaxCadence != invalidUint8 {
		v := int(session.MaxCadence)
		s.MaxCad = &v
	}
	if session.AvgCadence != invalidUint8 {
		v := int(session.AvgCadence)
		s.AvgCad = &v
	}

	// Devices predating the "enhanced" speed fields only fill the
	// legacy fixed-point fields (mm/s), rescaled here by 1000. The
	// fallback applies independently for max and avg.
	s.MaxSpeed = scaledValue(session.GetEnhancedMaxSpeedScaled())
	if s.MaxSpeed == nil && session.MaxSpeed != invalidUint16 {
		v := float64(session.MaxSpeed) / 1000
		s.MaxSpeed = &v
	}
	s.AvgSpeed = scaledValue(session.GetEnhancedAvgSpeedScaled())
	if s.AvgSpeed == nil && session.AvgSpeed != invalidUint16 {
		v := float64(session.AvgSpeed) / 1000
		s.AvgSpeed = &v
	}

	f.Summary = s
	f.hrSamples = nil
	f.cadSamples = nil
	f.atempSamples = nil
}

// Name builds a workout name from the device profile and the sport, or
// the sport alone when the file carries no profile.
func (f *Fit) Name() string {
	if f.Summary.ProfileName != "" {
		return f.Summary.ProfileName + " " + f.Summary.Sport
	}
	return f.Summary.Sport
}

// BuildTrackXML walks every record of the file once, building the GPX
// representation and updating the running sensor aggregates in the
// summary.
//
// Records without a position are left out of the emitted track but
// still feed the hr/cad/atemp aggregates, matching what the summary
// statistics have always reported for such files.
func (f *Fit) BuildTrackXML() (string, error) {
	doc := gpx.NewDocument("OpenWorkouts", f.Name())

	for _, record := range f.activity.Records {
		atempValue := recordTemperature(record)
		f.atempSamples = append(f.atempSamples, atempValue)
		f.Summary.MinATemp = runningMin(f.Summary.MinATemp, atempValue)
		if atempValue > f.Summary.MaxATemp {
			f.Summary.MaxATemp = atempValue
		}

		hrValue := effectiveHeartRate(lastSample(f.hrSamples), recordHeartRate(record))
		f.hrSamples = append(f.hrSamples, hrValue)
		f.Summary.MinHR = runningMin(f.Summary.MinHR, hrValue)

		cadValue := recordCadence(record)
		f.cadSamples = append(f.cadSamples, cadValue)
		f.Summary.MinCad = runningMin(f.Summary.MinCad, cadValue)

		lat, lon, ok := recordPosition(record)
		if !ok {
			continue
		}
		point := gpx.Point{
			Lat:   lat,
			Lon:   lon,
			Ele:   recordElevation(record),
			Speed: recordSpeed(record),
			Extensions: gpx.Extensions{
				TrackPointExtension: gpx.TrackPointExtension{
					ATemp: atempValue,
					HR:    hrValue,
					Cad:   cadValue,
				},
			},
		}
		if ts := record.Timestamp; !ts.IsZero() && !fit.IsBaseTime(ts) {
			point.Time = gpx.FormatPointTime(ts)
		}
		doc.AddPoint(point)
	}

	if len(f.atempSamples) > 0 {
		f.Summary.AvgATemp = roundedMean(f.atempSamples)
	}

	return doc.Serialize()
}

// effectiveHeartRate suppresses the zero readings a dropped heart rate
// strap produces, substituting the previous sample's value. The very
// first sample has no previous value and stays at zero.
func effectiveHeartRate(previous, current int) int {
	if current == 0 {
		return previous
	}
	return current
}

func lastSample(samples []int) int {
	if len(samples) == 0 {
		return 0
	}
	return samples[len(samples)-1]
}

func runningMin(current *int, value int) *int {
	if current == nil || value < *current {
		return &value
	}
	return current
}

func roundedMean(samples []int) int {
	sum := 0
	for _, v := range samples {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(samples))))
}

// recordPosition returns the position in degrees. Zero semicircles are
// what devices write while waiting for a GPS fix, so both zero and the
// invalid sentinel count as no position.
func recordPosition(record *fit.RecordMsg) (lat, lon float64, ok bool) {
	latSC := record.PositionLat.Semicircles()
	lonSC := record.PositionLong.Semicircles()
	if latSC == 0 || latSC == invalidSemicircles || lonSC == 0 || lonSC == invalidSemicircles {
		return 0, 0, false
	}
	lat = units.SemicirclesToDegrees(float64(latSC))
	lon = units.SemicirclesToDegrees(float64(lonSC))
	return lat, lon, true
}

func recordElevation(record *fit.RecordMsg) *float64 {
	if v := record.GetEnhancedAltitudeScaled(); isFinite(v) {
		return &v
	}
	if v := record.GetAltitudeScaled(); isFinite(v) {
		return &v
	}
	return nil
}

func recordSpeed(record *fit.RecordMsg) *float64 {
	if v := record.GetEnhancedSpeedScaled(); isFinite(v) {
		return &v
	}
	if v := record.GetSpeedScaled(); isFinite(v) {
		return &v
	}
	return nil
}

func recordTemperature(record *fit.RecordMsg) int {
	if record.Temperature == invalidTemperature {
		return 0
	}
	return int(record.Temperature)
}

func recordHeartRate(record *fit.RecordMsg) int {
	if record.HeartRate == invalidUint8 {
		return 0
	}
	return int(record.HeartRate)
}

func recordCadence(record *fit.RecordMsg) int {
	if record.Cadence == invalidUint8 {
		return 0
	}
	return int(record.Cadence)
}

func scaledValue(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
