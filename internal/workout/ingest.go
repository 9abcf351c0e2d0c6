package workout

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	gpxgo "github.com/tkrajina/gpxgo/gpx"

	"github.com/openworkouts/openworkouts-go/internal/fitfile"
	owgpx "github.com/openworkouts/openworkouts-go/internal/gpx"
	"github.com/openworkouts/openworkouts-go/internal/storage"
	"github.com/openworkouts/openworkouts-go/internal/units"
)

var ErrNoTrackingFile = errors.New("workout has no tracking file")

// LoadFromFile populates the workout from its attached tracking file,
// dispatching on the declared file type. It reports whether any data
// was loaded: an empty-but-valid file returns (false, nil), so callers
// can tell "nothing to load" from corrupt input. Re-running ingestion
// overwrites the previously derived fields, there is no merging.
//
// After a successful load the tracking file is always the GPX
// representation; binary uploads are retained verbatim in FitFile.
func (w *Workout) LoadFromFile(store *storage.Store) (bool, error) {
	if w.TrackingFile == nil {
		return false, ErrNoTrackingFile
	}

	var loaded bool
	var err error
	switch w.TrackingFiletype {
	case FileTypeGPX:
		loaded, err = w.loadFromGPX()
	case FileTypeFIT:
		loaded, err = w.loadFromFit(store)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownFileType, w.TrackingFiletype)
	}
	if err != nil || !loaded {
		return loaded, err
	}

	if w.Title == "" {
		w.Title = timeOfDayTitle(w.Start, w.Sport)
	}
	return true, nil
}

// loadFromGPX reads geometry with the track library, then re-walks the
// same file with the extension parser for the sensor values the track
// library cannot see.
func (w *Workout) loadFromGPX() (bool, error) {
	data, err := w.TrackingFile.ReadAll()
	if err != nil {
		return false, fmt.Errorf("failed to open tracking file: %w", err)
	}

	doc, err := gpxgo.ParseBytes(data)
	if err != nil {
		return false, fmt.Errorf("failed to parse gpx file: %w", err)
	}
	if len(doc.Tracks) == 0 {
		return false, nil
	}

	track := doc.Tracks[0]
	w.Start = track.TimeBounds().StartTime.UTC()

	// moving time: the sum of the segment durations, so pauses between
	// segments do not count
	duration := time.Duration(track.Duration()) * time.Second
	w.Duration = &duration

	// 3D path length accounts for elevation changes, not just the
	// planar distance
	distance := decimal.NewFromFloat(track.Length3D()).Div(decimal.NewFromInt(1000))
	w.Distance = &distance

	ud := track.UphillDownhill()
	uphill := decimal.NewFromFloat(ud.Uphill)
	downhill := decimal.NewFromFloat(ud.Downhill)
	w.Uphill = &uphill
	w.Downhill = &downhill

	if w.Title == "" && track.Name != "" {
		w.Title = track.Name
	}

	if err := w.loadGPXExtensions(); err != nil {
		return false, err
	}
	return true, nil
}

// loadGPXExtensions merges the hr/cad/atemp samples of every track in
// the file and computes the min/avg/max triples.
func (w *Workout) loadGPXExtensions() error {
	parser := owgpx.NewExtensionParser(w.TrackingFile.Path())
	if err := parser.Load(); err != nil {
		return err
	}
	tracks, err := parser.ParseTracks()
	if err != nil {
		return err
	}

	var hr, cad, atemp []decimal.Decimal
	for _, points := range tracks {
		for _, p := range points {
			if p.HR != nil {
				hr = append(hr, *p.HR)
			}
			if p.Cad != nil {
				cad = append(cad, *p.Cad)
			}
			if p.ATemp != nil {
				atemp = append(atemp, *p.ATemp)
			}
		}
	}

	w.HRMin, w.HRMax, w.HRAvg = sampleStats(hr)
	w.CadMin, w.CadMax, w.CadAvg = sampleStats(cad)
	w.ATempMin, w.ATempMax, w.ATempAvg = sampleStats(atemp)
	return nil
}

// loadFromFit retains the binary upload verbatim, regenerates the GPX
// representation from it and copies the decoded summary fields over.
func (w *Workout) loadFromFit(store *storage.Store) (bool, error) {
	if store == nil {
		return false, errors.New("fit ingestion needs a blob store")
	}

	// the tracking file slot holds the binary upload right now; keep a
	// byte-for-byte copy with an independent lifetime before the slot
	// is replaced by the regenerated GPX document
	data, err := w.TrackingFile.ReadAll()
	if err != nil {
		return false, fmt.Errorf("failed to read fit upload: %w", err)
	}
	w.FitFile, err = store.Save(data, "fit")
	if err != nil {
		return false, err
	}

	f, err := fitfile.Open(w.FitFile.Path())
	if err != nil {
		return false, err
	}
	f.LoadSummary()

	trackXML, err := f.BuildTrackXML()
	if err != nil {
		return false, fmt.Errorf("failed to build gpx from fit file: %w", err)
	}
	trackBlob, err := store.Save([]byte(trackXML), "gpx")
	if err != nil {
		return false, err
	}
	w.TrackingFile = trackBlob
	w.TrackingFiletype = FileTypeGPX

	w.copySummary(&f.Summary, f.Name())
	return true, nil
}

func (w *Workout) copySummary(s *fitfile.Summary, name string) {
	if s.Sport != "" {
		w.Sport = s.Sport
	}
	if s.Start != nil {
		w.Start = s.Start.UTC()
	}
	if s.Duration != nil {
		d := time.Duration(*s.Duration * float64(time.Second))
		w.Duration = &d
	}
	if s.Distance != nil {
		distance := decimal.NewFromFloat(units.MetersToKms(*s.Distance))
		w.Distance = &distance
	}
	if s.Uphill != nil {
		uphill := decimal.NewFromFloat(*s.Uphill)
		w.Uphill = &uphill
	}
	if s.Downhill != nil {
		downhill := decimal.NewFromFloat(*s.Downhill)
		w.Downhill = &downhill
	}
	if w.Title == "" && name != "" {
		w.Title = name
	}
	if s.MaxSpeed != nil {
		v := decimal.NewFromFloat(units.MpsToKmph(*s.MaxSpeed))
		w.SpeedMax = &v
	}
	if s.AvgSpeed != nil {
		v := decimal.NewFromFloat(units.MpsToKmph(*s.AvgSpeed))
		w.SpeedAvg = &v
	}

	// sensor triples only when the device reported a non-zero average
	if s.AvgHR != nil && *s.AvgHR != 0 && s.MaxHR != nil && s.MinHR != nil {
		w.HRMin = intDecimal(*s.MinHR)
		w.HRMax = intDecimal(*s.MaxHR)
		w.HRAvg = intDecimal(*s.AvgHR)
	}
	if s.AvgCad != nil && *s.AvgCad != 0 && s.MaxCad != nil && s.MinCad != nil {
		w.CadMin = intDecimal(*s.MinCad)
		w.CadMax = intDecimal(*s.MaxCad)
		w.CadAvg = intDecimal(*s.AvgCad)
	}
	if s.AvgATemp != 0 && s.MinATemp != nil {
		w.ATempMin = intDecimal(*s.MinATemp)
		w.ATempMax = intDecimal(s.MaxATemp)
		w.ATempAvg = intDecimal(s.AvgATemp)
	}
}

// sampleStats returns the min/max/avg triple for a sample list, or all
// nils for an empty one.
func sampleStats(samples []decimal.Decimal) (min, max, avg *decimal.Decimal) {
	if len(samples) == 0 {
		return nil, nil, nil
	}
	lo, hi, sum := samples[0], samples[0], decimal.Zero
	for _, v := range samples {
		if v.LessThan(lo) {
			lo = v
		}
		if v.GreaterThan(hi) {
			hi = v
		}
		sum = sum.Add(v)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(samples))))
	return &lo, &hi, &mean
}

func intDecimal(v int) *decimal.Decimal {
	d := decimal.NewFromInt(int64(v))
	return &d
}

// timeOfDayTitle derives a title like "Morning cycling" when neither
// the user nor the file provided one.
func timeOfDayTitle(start time.Time, sport string) string {
	var part string
	switch h := start.Hour(); {
	case h >= 5 && h < 12:
		part = "Morning"
	case h >= 12 && h < 18:
		part = "Afternoon"
	case h >= 18 && h < 22:
		part = "Evening"
	default:
		part = "Night"
	}
	return part + " " + sport
}
