package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"vcmap/internal/dataset"
	"vcmap/internal/jitter"
	"vcmap/internal/metrics"
)

const fixtureCSV = `Name,Lat,Long,Sector,Stage,Address,City,Website
Acme VC,37.77,-122.41,"Fintech, SaaS",Seed,1 Market St,San Francisco,https://acme.vc
Beta Capital,40.71,-74.00,Healthcare,Series A,,New York,
Gamma Partners,37.78,-122.40,"Fintech, SaaS",Series A,,San Francisco,nan
Bad Row,,,Fintech,Seed,,Nowhere,
`

type fakeSource struct {
	ds  *dataset.Dataset
	err error
}

func (f fakeSource) Current() (*dataset.Dataset, error) {
	return f.ds, f.err
}

func loadFixture(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(fixtureCSV), dataset.Options{Jitter: jitter.New(rand.New(rand.NewPCG(1, 2)))})
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return ds
}

func newTestHandler(t *testing.T, src DatasetSource) *Handler {
	t.Helper()
	return NewHandler(zerolog.New(io.Discard), src, Options{Metrics: metrics.New()})
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	h.Router().ServeHTTP(rr, req)
	return rr
}

func firmNames(t *testing.T, body map[string]any) []string {
	t.Helper()
	raw, ok := body["firms"].([]any)
	if !ok {
		t.Fatalf("expected firms array, got %T", body["firms"])
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]any)["name"].(string))
	}
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, nil)
	rr := serve(h, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRequestID_EchoesUpstreamHeader(t *testing.T) {
	h := newTestHandler(t, fakeSource{ds: loadFixture(t)})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/firms", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("expected X-Request-ID=req-123, got %q", got)
	}
}

func TestReadyz(t *testing.T) {
	rr := serve(newTestHandler(t, fakeSource{ds: loadFixture(t)}), "/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["firms"] != float64(3) {
		t.Fatalf("expected 3 firms, got %v", body["firms"])
	}

	rr = serve(newTestHandler(t, nil), "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a source, got %d", rr.Code)
	}
}

func TestDatasetErrors_AreFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"missing file", fmt.Errorf("%w: firms.csv: no such file", dataset.ErrDataUnavailable), "data_unavailable"},
		{"schema", &dataset.SchemaError{Missing: []string{dataset.ColumnLongitude}}, "schema_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, fakeSource{err: tc.err})
			for _, target := range []string{"/api/v1/dataset", "/api/v1/firms", "/api/v1/map", "/readyz"} {
				rr := serve(h, target)
				if rr.Code != http.StatusServiceUnavailable {
					t.Fatalf("%s: expected 503, got %d", target, rr.Code)
				}
				errObj, ok := decodeBody(t, rr)["error"].(map[string]any)
				if !ok || errObj["code"] != tc.code {
					t.Fatalf("%s: expected code %s, got %v", target, tc.code, errObj)
				}
			}
		})
	}
}

func TestDataset_Meta(t *testing.T) {
	rr := serve(newTestHandler(t, fakeSource{ds: loadFixture(t)}), "/api/v1/dataset")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["label"] != "US VCs v1.0" || body["updated"] != "Feb 2026" {
		t.Fatalf("unexpected dataset label/updated: %v %v", body["label"], body["updated"])
	}
	if body["firms"] != float64(3) || body["dropped"] != float64(1) {
		t.Fatalf("unexpected counts: firms=%v dropped=%v", body["firms"], body["dropped"])
	}
	if sectors, ok := body["sectors"].([]any); !ok || len(sectors) != 3 {
		t.Fatalf("expected 3 sectors, got %v", body["sectors"])
	}
}

func TestFirms_DefaultSelectsEverything(t *testing.T) {
	rr := serve(newTestHandler(t, fakeSource{ds: loadFixture(t)}), "/api/v1/firms")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected json content-type, got %q", got)
	}
	body := decodeBody(t, rr)
	if body["count"] != float64(3) {
		t.Fatalf("expected all 3 firms, got %v", body["count"])
	}
	if body["empty_selection"] != false {
		t.Fatalf("expected no empty selection")
	}
	if _, ok := body["warning"]; ok {
		t.Fatalf("expected no warning, got %v", body["warning"])
	}
}

func TestFirms_FilterAndAcrossDimensions(t *testing.T) {
	h := newTestHandler(t, fakeSource{ds: loadFixture(t)})

	rr := serve(h, "/api/v1/firms?sector=Fintech&stage=Seed")
	names := firmNames(t, decodeBody(t, rr))
	if len(names) != 1 || names[0] != "Acme VC" {
		t.Fatalf("expected only Acme VC, got %v", names)
	}

	rr = serve(h, "/api/v1/firms?sector=Fintech,Healthcare&stage=Series+A")
	names = firmNames(t, decodeBody(t, rr))
	if len(names) != 2 || names[0] != "Beta Capital" || names[1] != "Gamma Partners" {
		t.Fatalf("expected Beta Capital and Gamma Partners, got %v", names)
	}

	body := decodeBody(t, serve(h, "/api/v1/firms?sector=Fintech&stage=Seed"))
	first := body["firms"].([]any)[0].(map[string]any)
	if first["sector"] != "Fintech, SaaS" || first["stage"] != "Seed" {
		t.Fatalf("expected comma-joined tag strings, got %v / %v", first["sector"], first["stage"])
	}
}

func TestFirms_EmptySelectionWarns(t *testing.T) {
	h := newTestHandler(t, fakeSource{ds: loadFixture(t)})

	for _, target := range []string{
		"/api/v1/firms?sector=&stage=Seed",
		"/api/v1/firms?sector=Fintech&stage=",
		"/api/v1/firms?sector=&stage=",
	} {
		rr := serve(h, target)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rr.Code)
		}
		body := decodeBody(t, rr)
		if body["count"] != float64(0) {
			t.Fatalf("%s: expected no firms, got %v", target, body["count"])
		}
		if body["empty_selection"] != true {
			t.Fatalf("%s: expected empty_selection", target)
		}
		if body["warning"] != "Please select at least one Sector and Stage." {
			t.Fatalf("%s: expected warning, got %v", target, body["warning"])
		}
	}
}

func TestFirms_Get(t *testing.T) {
	ds := loadFixture(t)
	h := newTestHandler(t, fakeSource{ds: ds})

	rr := serve(h, "/api/v1/firms/"+ds.Firms[0].ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["name"] != "Acme VC" || body["website_url"] != "https://acme.vc" {
		t.Fatalf("unexpected detail %v", body)
	}

	// "nan" website must not produce a link.
	rr = serve(h, "/api/v1/firms/"+ds.Firms[2].ID)
	body = decodeBody(t, rr)
	if _, ok := body["website_url"]; ok {
		t.Fatalf("expected no website_url for placeholder website, got %v", body["website_url"])
	}
}

func TestFirms_Get_NotFound(t *testing.T) {
	rr := serve(newTestHandler(t, fakeSource{ds: loadFixture(t)}), "/api/v1/firms/does-not-exist")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	errObj, ok := decodeBody(t, rr)["error"].(map[string]any)
	if !ok || errObj["code"] != "not_found" {
		t.Fatalf("expected not_found, got %v", errObj)
	}
}

func TestFirms_Export_Attachment(t *testing.T) {
	rr := serve(newTestHandler(t, fakeSource{ds: loadFixture(t)}), "/api/v1/firms/export?sector=Fintech")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != "attachment; filename=\"vc_firms.csv\"" {
		t.Fatalf("expected Content-Disposition attachment, got %q", cd)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if records[1][0] != "Acme VC" || records[1][3] != "Fintech, SaaS" {
		t.Fatalf("unexpected first row %v", records[1])
	}
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	ds := loadFixture(t)
	h := newTestHandler(t, fakeSource{ds: ds})
	serve(h, "/api/v1/firms/"+ds.Firms[0].ID)
	serve(h, "/api/v1/firms?sector=&stage=")

	rr := serve(h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `path="/api/v1/firms/{id}"`) {
		t.Fatalf("expected route pattern label; body=%s", body)
	}
	if !strings.Contains(body, "vcmap_filter_empty_selection_total 1") {
		t.Fatalf("expected empty selection to be counted; body=%s", body)
	}
}
