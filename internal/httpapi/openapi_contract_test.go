package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type openAPIDocument struct {
	Servers []struct {
		URL string `yaml:"url"`
	} `yaml:"servers"`
	Paths map[string]map[string]any `yaml:"paths"`
}

var documentedMethods = map[string]struct{}{
	"get": {}, "post": {}, "put": {}, "patch": {}, "delete": {},
}

func loadOpenAPI(t *testing.T) openAPIDocument {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "api", "openapi.yaml")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read openapi document %q: %v", path, err)
	}
	var doc openAPIDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		t.Fatalf("parse openapi document %q: %v", path, err)
	}
	return doc
}

// TestOpenAPIMatchesRouter keeps api/openapi.yaml and the chi router in step.
// Every registered route must be documented and every documented route must
// be registered.
func TestOpenAPIMatchesRouter(t *testing.T) {
	doc := loadOpenAPI(t)

	base := ""
	if len(doc.Servers) > 0 {
		base = strings.TrimSuffix(doc.Servers[0].URL, "/")
	}

	var documented []string
	for p, ops := range doc.Paths {
		for m := range ops {
			if _, ok := documentedMethods[strings.ToLower(m)]; !ok {
				continue
			}
			documented = append(documented, strings.ToUpper(m)+" "+normalizeRoute(base+p))
		}
	}
	sort.Strings(documented)

	if diff := cmp.Diff(documented, registeredRoutes(t)); diff != "" {
		t.Fatalf("OpenAPI drift detected; update api/openapi.yaml or the router (-documented +registered):\n%s", diff)
	}
}

func registeredRoutes(t *testing.T) []string {
	t.Helper()

	raw := NewHandler(zerolog.New(io.Discard), nil, Options{}).Router()
	mux, ok := raw.(*chi.Mux)
	if !ok {
		t.Fatalf("expected *chi.Mux from Handler.Router(), got %T", raw)
	}

	seen := make(map[string]struct{})
	err := chi.Walk(mux, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if _, ok := documentedMethods[strings.ToLower(method)]; !ok {
			return nil
		}
		seen[method+" "+normalizeRoute(route)] = struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("walk chi router: %v", err)
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeRoute(route string) string {
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	if route == "" {
		return "/"
	}
	return route
}
