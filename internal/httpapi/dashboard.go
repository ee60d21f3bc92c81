package httpapi

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"vcmap/internal/dataset"
	"vcmap/internal/filter"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.New("dashboard.html").ParseFS(templateFS, "templates/dashboard.html"))

type tagOption struct {
	Tag      string
	Selected bool
}

type firmOption struct {
	ID       string
	Name     string
	Selected bool
}

type dashboardPage struct {
	Label   string
	Updated string

	// Fatal load failure; nothing else is rendered when set.
	Error     string
	ErrorCode string

	Sectors []tagOption
	Stages  []tagOption
	Heatmap bool

	Warning string
	Info    string
	Count   int
	Rows    []firmRow

	MapJSON template.JS

	Choices  []firmOption
	Selected *firmDetail
}

func tagOptions(universe []string, sel filter.Selection) []tagOption {
	out := make([]tagOption, 0, len(universe))
	for _, t := range universe {
		out = append(out, tagOption{Tag: t, Selected: sel.Has(t)})
	}
	return out
}

// pickDetail chooses the firm for the detail panel from the filtered set,
// falling back to the first name alphabetically.
func pickDetail(filtered []dataset.Firm, wantID string) ([]firmOption, *firmDetail) {
	sorted := dataset.SortedByName(filtered)
	if len(sorted) == 0 {
		return nil, nil
	}

	chosen := 0
	for i, f := range sorted {
		if f.ID == wantID {
			chosen = i
			break
		}
	}

	opts := make([]firmOption, 0, len(sorted))
	for i, f := range sorted {
		opts = append(opts, firmOption{ID: f.ID, Name: f.Name, Selected: i == chosen})
	}
	detail := toFirmDetail(sorted[chosen])
	return opts, &detail
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := dashboardPage{
		Label:   h.manifest.Dataset.Label,
		Updated: h.manifest.Dataset.Updated,
	}

	ds, code, err := h.currentDataset()
	if err != nil {
		page.ErrorCode = code
		page.Error = err.Error()
		h.renderDashboard(w, http.StatusServiceUnavailable, page)
		return
	}

	q := r.URL.Query()
	heatmap, err := parseHeatmapParam(q.Get("heatmap"))
	if err != nil {
		heatmap = true
	}
	res, sectors, stages := h.applyFilters(ds, q)

	page.Sectors = tagOptions(ds.Sectors, sectors)
	page.Stages = tagOptions(ds.Stages, stages)
	page.Heatmap = heatmap
	page.Warning = res.Warning
	page.Count = len(res.Firms)
	page.Rows = make([]firmRow, 0, len(res.Firms))
	for _, f := range res.Firms {
		page.Rows = append(page.Rows, toFirmRow(f))
	}

	if len(res.Firms) == 0 {
		page.Info = noResultsMessage
	} else {
		proj := h.buildMapProjection(res.Firms, heatmap)
		b, err := json.Marshal(proj)
		if err != nil {
			h.log.Error().Err(err).Msg("encode map projection failed")
		} else {
			// encoding/json escapes <, > and &, so the payload is safe inline.
			page.MapJSON = template.JS(b)
		}
		page.Choices, page.Selected = pickDetail(res.Firms, q.Get("selected"))
	}

	h.renderDashboard(w, http.StatusOK, page)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, status int, page dashboardPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := dashboardTemplate.Execute(w, page); err != nil {
		h.log.Error().Err(err).Msg("render dashboard failed")
	}
}
