// Package gpx handles the GPX side of workout ingestion: reading
// per-point sensor values from GPX 1.1 vendor extensions and building
// GPX documents out of decoded FIT recordings.
package gpx

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// Timestamp layouts found in the wild: Garmin Connect exports use
// fractional seconds, most devices write whole seconds. Tried in order,
// first match wins.
var pointTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05Z",
}

// ExtensionPoint is one track point as recovered from the raw GPX tree,
// including the gpxtpx extension values the track-geometry parser does
// not read. Optional fields are nil when the document omits them.
type ExtensionPoint struct {
	Lat   decimal.Decimal
	Lon   decimal.Decimal
	Ele   *decimal.Decimal
	Time  time.Time
	HR    *decimal.Decimal
	Cad   *decimal.Decimal
	ATemp *decimal.Decimal
}

// ExtensionParser re-walks a GPX document with a generic XML tree API to
// recover the heart rate, cadence and temperature samples stored in the
// Garmin TrackPointExtension elements. The primary track-geometry
// parser ignores those, so ingestion runs this parser over the same file
// as a second pass.
type ExtensionParser struct {
	path string
	doc  *etree.Element
}

func NewExtensionParser(path string) *ExtensionParser {
	return &ExtensionParser{path: path}
}

// Load parses the file into a navigable tree. A document that is not
// well-formed XML propagates the parser's error and leaves the tree
// unset.
func (p *ExtensionParser) Load() error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(p.path); err != nil {
		return fmt.Errorf("failed to parse gpx file %s: %w", p.path, err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("failed to parse gpx file %s: document has no root element", p.path)
	}
	p.doc = root
	return nil
}

// Loaded reports whether a document tree is available.
func (p *ExtensionParser) Loaded() bool {
	return p.doc != nil
}

// ParseTracks walks every track in the document and returns the points
// keyed by track name. Two tracks sharing a name have their points
// concatenated in document order under that one name.
func (p *ExtensionParser) ParseTracks() (map[string][]ExtensionPoint, error) {
	tracks := map[string][]ExtensionPoint{}
	if p.doc == nil {
		return tracks, fmt.Errorf("no gpx document loaded")
	}

	for _, trk := range p.doc.FindElements(".//trk") {
		name, points, err := p.parseTrack(trk)
		if err != nil {
			return nil, err
		}
		tracks[name] = append(tracks[name], points...)
	}
	return tracks, nil
}

func (p *ExtensionParser) parseTrack(trk *etree.Element) (string, []ExtensionPoint, error) {
	var name string
	if el := trk.SelectElement("name"); el != nil {
		name = el.Text()
	}

	var points []ExtensionPoint
	for _, trkseg := range trk.SelectElements("trkseg") {
		for _, trkpt := range trkseg.SelectElements("trkpt") {
			point, err := parsePoint(trkpt)
			if err != nil {
				return "", nil, err
			}
			points = append(points, point)
		}
	}
	return name, points, nil
}

func parsePoint(trkpt *etree.Element) (ExtensionPoint, error) {
	var point ExtensionPoint

	// lat/lon are required attributes, their absence is a hard failure
	lat, err := requiredAttr(trkpt, "lat")
	if err != nil {
		return point, err
	}
	lon, err := requiredAttr(trkpt, "lon")
	if err != nil {
		return point, err
	}
	point.Lat = lat
	point.Lon = lon

	// some exports omit elevation for indoor or corrupted fixes
	if el := trkpt.SelectElement("ele"); el != nil {
		ele, err := decimal.NewFromString(el.Text())
		if err != nil {
			return point, fmt.Errorf("invalid elevation %q: %w", el.Text(), err)
		}
		point.Ele = &ele
	}

	timeEl := trkpt.SelectElement("time")
	if timeEl == nil {
		return point, fmt.Errorf("track point has no time element")
	}
	point.Time, err = parsePointTime(timeEl.Text())
	if err != nil {
		return point, err
	}

	point.HR, point.Cad, point.ATemp, err = parseExtensions(trkpt)
	return point, err
}

// parseExtensions digs into the nested, namespaced extension elements.
// Any missing level means that quantity was not recorded, never an
// error.
func parseExtensions(trkpt *etree.Element) (hr, cad, atemp *decimal.Decimal, err error) {
	extensions := trkpt.SelectElement("extensions")
	if extensions == nil {
		return nil, nil, nil, nil
	}
	tpx := extensions.SelectElement("gpxtpx:TrackPointExtension")
	if tpx == nil {
		return nil, nil, nil, nil
	}

	if hr, err = optionalValue(tpx, "gpxtpx:hr"); err != nil {
		return nil, nil, nil, err
	}
	if cad, err = optionalValue(tpx, "gpxtpx:cad"); err != nil {
		return nil, nil, nil, err
	}
	if atemp, err = optionalValue(tpx, "gpxtpx:atemp"); err != nil {
		return nil, nil, nil, err
	}
	return hr, cad, atemp, nil
}

func requiredAttr(el *etree.Element, name string) (decimal.Decimal, error) {
	attr := el.SelectAttr(name)
	if attr == nil {
		return decimal.Decimal{}, fmt.Errorf("track point has no %s attribute", name)
	}
	value, err := decimal.NewFromString(attr.Value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s attribute %q: %w", name, attr.Value, err)
	}
	return value, nil
}

func optionalValue(parent *etree.Element, tag string) (*decimal.Decimal, error) {
	el := parent.SelectElement(tag)
	if el == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(el.Text())
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", tag, el.Text(), err)
	}
	return &value, nil
}

func parsePointTime(text string) (time.Time, error) {
	var lastErr error
	for _, layout := range pointTimeLayouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("invalid track point time %q: %w", text, lastErr)
}
