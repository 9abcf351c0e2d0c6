// Package workout holds the canonical normalized workout record and its
// ingestion logic: one call turns an uploaded FIT or GPX tracking file
// into populated summary fields plus a GPX track representation.
package workout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openworkouts/openworkouts-go/internal/storage"
	"github.com/openworkouts/openworkouts-go/internal/units"
)

// Workout is the canonical normalized record a tracking file is
// ingested into. Optional derived fields are nil until an ingestion
// pass fills them; the hr/cad/atemp triples are set as a group or not
// at all.
type Workout struct {
	Start    time.Time // always UTC
	Sport    string
	Title    string
	Notes    string
	Duration *time.Duration   // device timer value, not end minus start
	Distance *decimal.Decimal // kilometers
	Uphill   *decimal.Decimal // meters
	Downhill *decimal.Decimal // meters

	HRMin    *decimal.Decimal
	HRMax    *decimal.Decimal
	HRAvg    *decimal.Decimal
	CadMin   *decimal.Decimal
	CadMax   *decimal.Decimal
	CadAvg   *decimal.Decimal
	ATempMin *decimal.Decimal
	ATempMax *decimal.Decimal
	ATempAvg *decimal.Decimal

	SpeedMax *decimal.Decimal // km/h
	SpeedAvg *decimal.Decimal // km/h

	// TrackingFile always holds the GPX representation after a
	// successful ingestion; the original binary upload, if any, is
	// retained untouched in FitFile.
	TrackingFile     *storage.Blob
	TrackingFiletype FileType
	FitFile          *storage.Blob
}

// New returns an empty workout. Ingestion populates it in one call.
func New() *Workout {
	return &Workout{
		Start: time.Now().UTC(),
		Sport: "unknown",
	}
}

// Stats is a rounded min/max/avg triple for one sensor quantity.
type Stats struct {
	Min decimal.Decimal
	Max decimal.Decimal
	Avg decimal.Decimal
}

// HasHR reports whether heart rate data is present. The triple is
// either fully set or fully absent.
func (w *Workout) HasHR() bool {
	return w.HRMin != nil && w.HRMax != nil && w.HRAvg != nil
}

func (w *Workout) HasCad() bool {
	return w.CadMin != nil && w.CadMax != nil && w.CadAvg != nil
}

func (w *Workout) HasATemp() bool {
	return w.ATempMin != nil && w.ATempMax != nil && w.ATempAvg != nil
}

// HR returns the rounded heart rate triple, nil when absent.
func (w *Workout) HR() *Stats {
	if !w.HasHR() {
		return nil
	}
	return roundedStats(w.HRMin, w.HRMax, w.HRAvg)
}

func (w *Workout) Cad() *Stats {
	if !w.HasCad() {
		return nil
	}
	return roundedStats(w.CadMin, w.CadMax, w.CadAvg)
}

func (w *Workout) ATemp() *Stats {
	if !w.HasATemp() {
		return nil
	}
	return roundedStats(w.ATempMin, w.ATempMax, w.ATempAvg)
}

func roundedStats(min, max, avg *decimal.Decimal) *Stats {
	return &Stats{
		Min: min.Round(0),
		Max: max.Round(0),
		Avg: avg.Round(0),
	}
}

// End is the start plus the recorded duration, zero when no duration
// was loaded.
func (w *Workout) End() time.Time {
	if w.Duration == nil {
		return time.Time{}
	}
	return w.Start.Add(*w.Duration)
}

// SplitDuration splits the recorded duration into hours, minutes and
// seconds.
func (w *Workout) SplitDuration() (int, int, int) {
	if w.Duration == nil {
		return 0, 0, 0
	}
	h, m, s, err := units.DurationToHMS(*w.Duration)
	if err != nil {
		return 0, 0, 0
	}
	return h, m, s
}

// FormattedDuration renders the duration as zero-padded "hh:mm:ss".
func (w *Workout) FormattedDuration() string {
	h, m, s := w.SplitDuration()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// RoundedDistance is the distance rounded to one decimal, "-" for
// workouts without distance data (weights, table tennis, ...).
func (w *Workout) RoundedDistance() string {
	if w.Distance == nil {
		return "-"
	}
	return w.Distance.Round(1).String()
}

// Hash is the duplicate-detection fingerprint: two workouts for the
// same owner with the same start, duration and distance are considered
// re-uploads of the same activity, whatever the file contents.
func (w *Workout) Hash(ownerID string) string {
	var durationSeconds int64
	if w.Duration != nil {
		durationSeconds = int64(w.Duration.Seconds())
	}
	distance := "0"
	if w.Distance != nil {
		distance = w.Distance.String()
	}
	payload := ownerID +
		w.Start.UTC().Format("2006-01-02 15:04:05") +
		strconv.FormatInt(durationSeconds, 10) +
		distance
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
