package httpapi

import (
	"encoding/csv"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vcmap/internal/dataset"
	"vcmap/internal/filter"
	"vcmap/internal/tagging"
)

const (
	paramSector = "sector"
	paramStage  = "stage"
)

type datasetMeta struct {
	Label    string     `json:"label"`
	Updated  string     `json:"updated"`
	Firms    int        `json:"firms"`
	Dropped  int        `json:"dropped"`
	Sectors  []string   `json:"sectors"`
	Stages   []string   `json:"stages"`
	Source   sourceMeta `json:"source"`
	LoadedAt time.Time  `json:"loaded_at"`
}

type sourceMeta struct {
	Path    string    `json:"path,omitempty"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

type firmRow struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	Sectors   []string `json:"sectors"`
	Stages    []string `json:"stages"`
	Sector    string   `json:"sector"`
	Stage     string   `json:"stage"`
	Website   string   `json:"website"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
}

type firmDetail struct {
	firmRow
	WebsiteURL *string           `json:"website_url,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

type firmList struct {
	Count          int       `json:"count"`
	Firms          []firmRow `json:"firms"`
	EmptySelection bool      `json:"empty_selection"`
	Warning        *string   `json:"warning,omitempty"`
	Sectors        []string  `json:"selected_sectors"`
	Stages         []string  `json:"selected_stages"`
}

func toFirmRow(f dataset.Firm) firmRow {
	return firmRow{
		ID:        f.ID,
		Name:      f.Name,
		Address:   f.Address,
		City:      f.City,
		Sectors:   f.Sectors,
		Stages:    f.Stages,
		Sector:    tagging.Join(f.Sectors),
		Stage:     tagging.Join(f.Stages),
		Website:   f.Website,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
	}
}

func toFirmDetail(f dataset.Firm) firmDetail {
	d := firmDetail{firmRow: toFirmRow(f), Extra: f.Extra}
	if !tagging.IsBlank(f.Website) {
		site := f.Website
		d.WebsiteURL = &site
	}
	return d
}

// parseSelection reads one filter dimension. An absent parameter selects the
// whole universe, mirroring the dashboard default; a parameter present with
// only blank values is an explicit empty selection.
func parseSelection(q url.Values, key string, universe []string) filter.Selection {
	values, present := q[key]
	if !present {
		return filter.NewSelection(universe...)
	}
	var tags []string
	for _, v := range values {
		tags = append(tags, tagging.Parse(v)...)
	}
	return filter.NewSelection(tags...)
}

func (h *Handler) applyFilters(ds *dataset.Dataset, q url.Values) (filter.Result, filter.Selection, filter.Selection) {
	sectors := parseSelection(q, paramSector, ds.Sectors)
	stages := parseSelection(q, paramStage, ds.Stages)
	res := h.engineFor(ds).Match(sectors, stages)
	if res.EmptySelection {
		h.metrics.IncEmptySelection()
	}
	return res, sectors, stages
}

func (h *Handler) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ensureDataset(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, datasetMeta{
		Label:   h.manifest.Dataset.Label,
		Updated: h.manifest.Dataset.Updated,
		Firms:   len(ds.Firms),
		Dropped: ds.Dropped,
		Sectors: ds.Sectors,
		Stages:  ds.Stages,
		Source: sourceMeta{
			Path:    ds.Source.Path,
			ModTime: ds.Source.ModTime,
			Size:    ds.Source.Size,
		},
		LoadedAt: ds.LoadedAt,
	})
}

func (h *Handler) handleListFirms(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ensureDataset(w)
	if !ok {
		return
	}

	res, sectors, stages := h.applyFilters(ds, r.URL.Query())
	resp := firmList{
		Count:          len(res.Firms),
		Firms:          make([]firmRow, 0, len(res.Firms)),
		EmptySelection: res.EmptySelection,
		Sectors:        sectors.Tags(),
		Stages:         stages.Tags(),
	}
	for _, f := range res.Firms {
		resp.Firms = append(resp.Firms, toFirmRow(f))
	}
	if res.Warning != "" {
		warning := res.Warning
		resp.Warning = &warning
	}

	h.writeJSON(w, http.StatusOK, resp)
}

var exportHeader = []string{"name", "Address", "City", "Sector", "Stage", "Website", "latitude", "longitude"}

func (h *Handler) handleExportFirms(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ensureDataset(w)
	if !ok {
		return
	}

	res, _, _ := h.applyFilters(ds, r.URL.Query())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"vc_firms.csv\"")
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, f := range res.Firms {
		_ = cw.Write([]string{
			f.Name,
			f.Address,
			f.City,
			tagging.Join(f.Sectors),
			tagging.Join(f.Stages),
			f.Website,
			strconv.FormatFloat(f.Latitude, 'f', -1, 64),
			strconv.FormatFloat(f.Longitude, 'f', -1, 64),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.log.Error().Err(err).Msg("export firms failed")
	}
}

func (h *Handler) handleGetFirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ds, ok := h.ensureDataset(w)
	if !ok {
		return
	}

	f, found := ds.Lookup(id)
	if !found {
		h.writeError(w, http.StatusNotFound, "not_found", "firm not found", map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, toFirmDetail(f))
}
