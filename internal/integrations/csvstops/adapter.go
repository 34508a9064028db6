// Package csvstops reads tour stops from CSV: label,lat,lng per row.
package csvstops

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"routeplanner/internal/geo"
)

// ErrNoRows is returned when the input holds no data rows.
var ErrNoRows = errors.New("csv: no rows")

// Adapter reads stops from a CSV file or stream.
type Adapter struct {
	Path string // read from this file when R is nil
	R    io.Reader
}

func (a Adapter) Name() string { return "csv" }

// FetchPoints parses the configured input.
func (a Adapter) FetchPoints(ctx context.Context) ([]geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.R != nil {
		return Parse(a.R)
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse reads rows of label,lat,lng. A first row whose lat column is not a
// number is treated as a header. Rows with two columns are lat,lng without a
// label. Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]geo.Point, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var out []geo.Point
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row++
		label, latS, lngS, err := columns(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		lat, errLat := strconv.ParseFloat(latS, 64)
		lng, errLng := strconv.ParseFloat(lngS, 64)
		if errLat != nil || errLng != nil {
			if row == 1 && len(out) == 0 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: %w: %q,%q", row, geo.ErrInvalidCoordinate, latS, lngS)
		}
		p := geo.Point{ID: len(out), Label: label, Lat: lat, Lng: lng}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func columns(rec []string) (label, lat, lng string, err error) {
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	switch len(rec) {
	case 2:
		return "", rec[0], rec[1], nil
	case 3:
		return rec[0], rec[1], rec[2], nil
	default:
		return "", "", "", fmt.Errorf("want 2 or 3 columns, got %d", len(rec))
	}
}
