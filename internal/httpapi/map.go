package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"vcmap/internal/dataset"
	"vcmap/internal/geo"
)

const noResultsMessage = "No VCs found matching your filters."

type mapProjection struct {
	View           *geo.View                  `json:"view,omitempty"`
	Points         *geojson.FeatureCollection `json:"points"`
	HeatmapEnabled bool                       `json:"heatmap_enabled"`
	Heatmap        []geo.HeatCell             `json:"heatmap"`
	Count          int                        `json:"count"`
	EmptySelection bool                       `json:"empty_selection"`
	Warning        *string                    `json:"warning,omitempty"`
	Guidance       *string                    `json:"guidance,omitempty"`
}

// parseHeatmapParam defaults to enabled, matching the dashboard toggle.
func parseHeatmapParam(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true, nil
	}
	switch strings.ToLower(raw) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func (h *Handler) buildMapProjection(firms []dataset.Firm, heatmap bool) mapProjection {
	resp := mapProjection{
		Points:         geo.Points(firms),
		HeatmapEnabled: heatmap,
		Heatmap:        []geo.HeatCell{},
		Count:          len(firms),
	}
	if view, ok := geo.ViewFor(firms, h.manifest.Map.Zoom); ok {
		resp.View = &view
	} else {
		guidance := noResultsMessage
		resp.Guidance = &guidance
	}
	if heatmap {
		resp.Heatmap = geo.Heatmap(firms, h.manifest.Map.HeatmapPrecision)
	}
	return resp
}

func (h *Handler) handleGetMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	heatmap, err := parseHeatmapParam(q.Get("heatmap"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid heatmap", map[string]any{"error": err.Error()})
		return
	}

	ds, ok := h.ensureDataset(w)
	if !ok {
		return
	}

	res, _, _ := h.applyFilters(ds, q)
	resp := h.buildMapProjection(res.Firms, heatmap)
	resp.EmptySelection = res.EmptySelection
	if res.Warning != "" {
		warning := res.Warning
		resp.Warning = &warning
	}

	h.writeJSON(w, http.StatusOK, resp)
}
