package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Canonical column names produced by header normalization.
const (
	ColumnName      = "name"
	ColumnLatitude  = "latitude"
	ColumnLongitude = "longitude"
	ColumnSector    = "Sector"
	ColumnStage     = "Stage"
	ColumnAddress   = "Address"
	ColumnCity      = "City"
	ColumnWebsite   = "Website"
)

// ColumnAliases maps trimmed source headers to canonical names. Headers not
// listed here pass through unchanged.
var ColumnAliases = map[string]string{
	"Name":      ColumnName,
	"Lat":       ColumnLatitude,
	"Latitude":  ColumnLatitude,
	"Long":      ColumnLongitude,
	"Longitude": ColumnLongitude,
}

var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrSchema          = errors.New("schema error")
)

// SchemaError reports required columns that are absent after normalization.
type SchemaError struct {
	Missing []string
	Headers []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("csv must contain %s columns (missing %s)",
		quoteJoin([]string{ColumnLatitude, ColumnLongitude}, " and "),
		quoteJoin(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

func quoteJoin(values []string, sep string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, sep)
}

// Firm is one venture-capital firm from the source file.
type Firm struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Sectors   []string
	Stages    []string
	Address   string
	City      string
	Website   string

	// Marker placement only.
	JitteredLatitude  float64
	JitteredLongitude float64

	Extra map[string]string
}

// Source identifies the file a Dataset was built from.
type Source struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Dataset is the immutable result of one load.
type Dataset struct {
	Firms    []Firm
	Dropped  int
	Sectors  []string
	Stages   []string
	Source   Source
	LoadedAt time.Time
}

// Lookup returns the firm with the given id.
func (d *Dataset) Lookup(id string) (Firm, bool) {
	if d == nil {
		return Firm{}, false
	}
	for _, f := range d.Firms {
		if f.ID == id {
			return f, true
		}
	}
	return Firm{}, false
}

// SortedByName returns a copy of firms ordered by name, then by original
// position. It backs the detail-view dropdown.
func SortedByName(firms []Firm) []Firm {
	out := make([]Firm, len(firms))
	copy(out, firms)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var firmNamespace = uuid.MustParse("6f1d7a52-3c1e-4b7e-9a55-2f0a4c9d8e11")

func firmID(source string, ordinal int, record []string) string {
	key := fmt.Sprintf("%s\x00%d\x00%s", source, ordinal, strings.Join(record, "\x1f"))
	return uuid.NewSHA1(firmNamespace, []byte(key)).String()
}
