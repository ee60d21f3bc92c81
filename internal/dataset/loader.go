package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vcmap/internal/jitter"
	"vcmap/internal/tagging"
)

// Options tunes a load. The zero value uses the default alias table, the
// process-wide random source and a no-op logger.
type Options struct {
	// Aliases are merged over ColumnAliases; an entry here wins.
	Aliases map[string]string
	Jitter  *jitter.Jitterer
	Log     *zerolog.Logger
	Now     func() time.Time
}

func (o Options) aliases() map[string]string {
	out := make(map[string]string, len(ColumnAliases)+len(o.Aliases))
	for k, v := range ColumnAliases {
		out[k] = v
	}
	for k, v := range o.Aliases {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func (o Options) logger() zerolog.Logger {
	if o.Log == nil {
		return zerolog.Nop()
	}
	return *o.Log
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Load reads the CSV at path. A missing or unreadable file yields an error
// wrapping ErrDataUnavailable.
func Load(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, path, err)
	}

	ds, err := read(f, path, opts)
	if err != nil {
		return nil, err
	}
	ds.Source = Source{Path: path, ModTime: info.ModTime(), Size: info.Size()}
	return ds, nil
}

// Read parses CSV from r.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	return read(r, "", opts)
}

type columns struct {
	index   map[string]int
	headers []string
}

func (c columns) value(record []string, name string) (string, bool) {
	i, ok := c.index[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return record[i], true
}

func normalizeHeaders(raw []string, aliases map[string]string) columns {
	cols := columns{index: make(map[string]int, len(raw)), headers: make([]string, len(raw))}
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if canonical, ok := aliases[h]; ok {
			h = canonical
		}
		cols.headers[i] = h
		if _, dup := cols.index[h]; dup {
			continue
		}
		cols.index[h] = i
	}
	return cols
}

func read(r io.Reader, source string, opts Options) (*Dataset, error) {
	log := opts.logger()
	jit := opts.Jitter
	if jit == nil {
		jit = jitter.New(nil)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Missing: []string{ColumnLatitude, ColumnLongitude}}
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := normalizeHeaders(header, opts.aliases())
	var missing []string
	for _, required := range []string{ColumnLatitude, ColumnLongitude} {
		if _, ok := cols.index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Headers: cols.headers}
	}

	ds := &Dataset{LoadedAt: opts.now()}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", line, err)
		}

		lat, latOK := parseCoordinate(cols.value(record, ColumnLatitude))
		lon, lonOK := parseCoordinate(cols.value(record, ColumnLongitude))
		if !latOK || !lonOK {
			ds.Dropped++
			log.Debug().Int("line", line).Msg("dropping row without usable coordinates")
			continue
		}

		ds.Firms = append(ds.Firms, buildFirm(cols, record, source, line, lat, lon, jit))
	}

	sectors := make([][]string, len(ds.Firms))
	stages := make([][]string, len(ds.Firms))
	for i, f := range ds.Firms {
		sectors[i] = f.Sectors
		stages[i] = f.Stages
	}
	ds.Sectors = tagging.Universe(sectors)
	ds.Stages = tagging.Universe(stages)

	return ds, nil
}

func buildFirm(cols columns, record []string, source string, line int, lat, lon float64, jit *jitter.Jitterer) Firm {
	text := func(name string) string {
		v, _ := cols.value(record, name)
		return strings.TrimSpace(v)
	}

	f := Firm{
		ID:        firmID(source, line, record),
		Name:      text(ColumnName),
		Latitude:  lat,
		Longitude: lon,
		Sectors:   tagging.ParseCell(cols.value(record, ColumnSector)),
		Stages:    tagging.ParseCell(cols.value(record, ColumnStage)),
		Address:   text(ColumnAddress),
		City:      text(ColumnCity),
		Website:   text(ColumnWebsite),
	}
	f.JitteredLatitude, f.JitteredLongitude = jit.Apply(lat, lon)

	for name, i := range cols.index {
		if isKnownColumn(name) || i >= len(record) {
			continue
		}
		if f.Extra == nil {
			f.Extra = make(map[string]string)
		}
		f.Extra[name] = record[i]
	}
	return f
}

func isKnownColumn(name string) bool {
	switch name {
	case ColumnName, ColumnLatitude, ColumnLongitude, ColumnSector, ColumnStage, ColumnAddress, ColumnCity, ColumnWebsite:
		return true
	}
	return false
}

func parseCoordinate(raw string, present bool) (float64, bool) {
	if !present {
		return 0, false
	}
	raw = strings.TrimSpace(raw)
	if isHexFloat(raw) {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// isHexFloat reports a hexadecimal literal such as 0x1p4, which ParseFloat
// accepts but decimal coordinate columns never contain.
func isHexFloat(raw string) bool {
	raw = strings.TrimLeft(raw, "+-")
	return len(raw) > 1 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X')
}
