// Package geo shapes filtered firms into what the map needs: a view centred
// on the selection, marker features at jittered positions and density cells
// for the heatmap overlay.
package geo

import (
	"sort"

	geohash "github.com/TomiHiltunen/geohash-golang"
	geojson "github.com/paulmach/go.geojson"
	"github.com/twpayne/go-geom"

	"vcmap/internal/dataset"
	"vcmap/internal/tagging"
)

// View is the initial camera for the map.
type View struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Zoom      float64    `json:"zoom"`
	Pitch     float64    `json:"pitch"`
	Bounds    [4]float64 `json:"bounds"` // west, south, east, north
}

// ViewFor centres on the mean of the firms' true coordinates. It reports
// false when there is nothing to show.
func ViewFor(firms []dataset.Firm, zoom float64) (View, bool) {
	if len(firms) == 0 {
		return View{}, false
	}

	flat := make([]float64, 0, 2*len(firms))
	var sumLat, sumLon float64
	for _, f := range firms {
		flat = append(flat, f.Longitude, f.Latitude)
		sumLat += f.Latitude
		sumLon += f.Longitude
	}
	b := geom.NewMultiPointFlat(geom.XY, flat).Bounds()
	n := float64(len(firms))

	return View{
		Latitude:  sumLat / n,
		Longitude: sumLon / n,
		Zoom:      zoom,
		Bounds:    [4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)},
	}, true
}

// Points returns one feature per firm, placed at its jittered position and
// carrying the tooltip fields.
func Points(firms []dataset.Firm) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range firms {
		feat := geojson.NewPointFeature([]float64{f.JitteredLongitude, f.JitteredLatitude})
		feat.ID = f.ID
		feat.SetProperty("id", f.ID)
		feat.SetProperty("name", f.Name)
		feat.SetProperty("city", f.City)
		feat.SetProperty("stage", tagging.Join(f.Stages))
		feat.SetProperty("sector", tagging.Join(f.Sectors))
		fc.AddFeature(feat)
	}
	return fc
}

// HeatCell aggregates firms sharing a geohash prefix.
type HeatCell struct {
	Geohash   string  `json:"geohash"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int     `json:"count"`
}

// Heatmap buckets the firms' true coordinates into geohash cells of the given
// precision. Cells are ordered by count, densest first.
func Heatmap(firms []dataset.Firm, precision int) []HeatCell {
	if precision <= 0 {
		precision = 4
	}

	type acc struct {
		sumLat, sumLon float64
		n              int
	}
	cells := make(map[string]*acc)
	for _, f := range firms {
		h := geohash.Encode(f.Latitude, f.Longitude)
		if len(h) > precision {
			h = h[:precision]
		}
		a, ok := cells[h]
		if !ok {
			a = &acc{}
			cells[h] = a
		}
		a.sumLat += f.Latitude
		a.sumLon += f.Longitude
		a.n++
	}

	out := make([]HeatCell, 0, len(cells))
	for h, a := range cells {
		out = append(out, HeatCell{
			Geohash:   h,
			Latitude:  a.sumLat / float64(a.n),
			Longitude: a.sumLon / float64(a.n),
			Count:     a.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Geohash < out[j].Geohash
	})
	return out
}
