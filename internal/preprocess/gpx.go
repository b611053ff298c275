// Package preprocess turns directories of raw GPX files into the cached
// track datasets the worker pipeline decodes. It is the offline half of
// the system: parse, dedupe, measure, chunk, write.
package preprocess

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/gpxtojson/trackworker/internal/geo"
)

// Style describes how one track type renders on the map.
type Style struct {
	Color       string
	DisplayType string
}

// DefaultTrackTypes maps the GPX subdirectory names to their render
// styles. Road tracks render as individual points; everything else as
// lines.
var DefaultTrackTypes = map[string]Style{
	"road":  {Color: "#ef4444", DisplayType: geo.DisplayPoints},
	"train": {Color: "#10b981", DisplayType: geo.DisplayLines},
	"plane": {Color: "#3b82f6", DisplayType: geo.DisplayLines},
	"other": {Color: "#f59e0b", DisplayType: geo.DisplayLines},
}

// segment is one GPX track segment: an ordered coordinate run with the
// per-point timestamps, zero time when the file carries none.
type segment struct {
	points []orb.Point
	times  []time.Time
}

// parseFile reads every track segment of one GPX file. Points without
// parseable coordinates are skipped, matching how lenient the rest of
// the toolchain is about hand-exported files.
func parseFile(path string) ([]segment, error) {
	doc, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx %s: %w", path, err)
	}

	var segments []segment
	for _, track := range doc.Tracks {
		for _, seg := range track.Segments {
			if len(seg.Points) == 0 {
				continue
			}
			s := segment{
				points: make([]orb.Point, 0, len(seg.Points)),
				times:  make([]time.Time, 0, len(seg.Points)),
			}
			for _, p := range seg.Points {
				s.points = append(s.points, orb.Point{p.Longitude, p.Latitude})
				s.times = append(s.times, p.Timestamp)
			}
			segments = append(segments, s)
		}
	}

	return segments, nil
}

// fixDatelineCrossing unwraps a coordinate run that crosses the
// antimeridian so the renderer draws one continuous line instead of a
// stroke across the whole map. Adjacent longitudes differing by more
// than 180 degrees get shifted by 360 toward the previous point.
func fixDatelineCrossing(line orb.LineString) orb.LineString {
	if len(line) < 2 {
		return line
	}

	fixed := make(orb.LineString, 1, len(line))
	fixed[0] = line[0]

	for i := 1; i < len(line); i++ {
		lon, lat := line[i][0], line[i][1]
		switch diff := lon - fixed[i-1][0]; {
		case diff > 180:
			fixed = append(fixed, orb.Point{lon - 360, lat})
		case diff < -180:
			fixed = append(fixed, orb.Point{lon + 360, lat})
		default:
			fixed = append(fixed, orb.Point{lon, lat})
		}
	}

	return fixed
}
