package ims

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
	"gonum.org/v1/gonum/mat"
)

// DefaultTableMax is the declared maximum of a lookup table when none is
// given, matching 8-bit RGB tables.
const DefaultTableMax = 255

// LookupTable is an RGB colour table: one row per intensity sample, three
// columns holding the red, green and blue components in [0, Max].
type LookupTable struct {
	Rows *mat.Dense
	Max  float64
}

// NewLookupTable builds a table from rows of three components. A max of
// zero selects DefaultTableMax.
func NewLookupTable(rows [][]float64, max float64) (*LookupTable, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: lookup table has no rows", ErrConfig)
	}
	data := make([]float64, 0, 3*len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("%w: lookup table row %d has %d columns, want 3", ErrConfig, i, len(row))
		}
		data = append(data, row...)
	}
	if max == 0 {
		max = DefaultTableMax
	}
	t := &LookupTable{Rows: mat.NewDense(len(rows), 3, data), Max: max}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Len returns the number of rows.
func (t *LookupTable) Len() int {
	if t == nil || t.Rows == nil {
		return 0
	}
	r, _ := t.Rows.Dims()
	return r
}

// Validate checks the table's shape and that every component lies in
// [0, Max].
func (t *LookupTable) Validate() error {
	if t.Len() == 0 {
		return fmt.Errorf("%w: lookup table has no rows", ErrConfig)
	}
	if _, c := t.Rows.Dims(); c != 3 {
		return fmt.Errorf("%w: lookup table has %d columns, want 3", ErrConfig, c)
	}
	if !(t.Max > 0) {
		return fmt.Errorf("%w: lookup table maximum %g is not positive", ErrConfig, t.Max)
	}
	r, c := t.Rows.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := t.Rows.At(i, j); !(v >= 0 && v <= t.Max) {
				return fmt.Errorf("%w: lookup table value %g at row %d outside [0, %g]", ErrConfig, v, i, t.Max)
			}
		}
	}
	return nil
}

// Normalized returns the rows scaled into [0, 1].
func (t *LookupTable) Normalized() *mat.Dense {
	var n mat.Dense
	n.Scale(1/t.Max, t.Rows)
	return &n
}

// ParseLookupTable reads a table from comma or whitespace separated text,
// one row of three components per line. Blank lines, lines starting with
// '#' and a non-numeric header line are skipped.
func ParseLookupTable(r io.Reader, max float64) (*LookupTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var rows [][]float64
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: lookup table: %w", ErrConfig, err)
		}
		fields := splitRecord(record)
		if len(fields) == 0 {
			continue
		}
		row, err := parseRow(fields)
		if err != nil {
			if len(rows) == 0 && line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("%w: lookup table line %d: %w", ErrConfig, line, err)
		}
		rows = append(rows, row)
	}
	return NewLookupTable(rows, max)
}

// splitRecord also accepts whitespace separated lines, which the csv
// reader returns as a single field.
func splitRecord(record []string) []string {
	if len(record) == 1 {
		return strings.Fields(record[0])
	}
	fields := make([]string, 0, len(record))
	for _, f := range record {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func parseRow(fields []string) ([]float64, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("%d columns, want 3", len(fields))
	}
	row := make([]float64, 3)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %q is not a number", i+1, f)
		}
		row[i] = v
	}
	return row, nil
}

// LoadLookupTable reads a table from a blob URL such as
// file:///luts/fire.csv or s3://bucket/luts/fire.csv, or from a plain
// local path. Only the schemes whose drivers are linked into the binary
// can be opened; file:// always is.
func LoadLookupTable(ctx context.Context, location string, max float64) (*LookupTable, error) {
	bucket, key, err := openTableBucket(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup table %s: %w", ErrConfig, location, err)
	}
	defer bucket.Close()

	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: lookup table %s does not exist", ErrConfig, location)
		}
		return nil, fmt.Errorf("%w: lookup table %s: %w", ErrConfig, location, err)
	}
	defer r.Close()

	t, err := ParseLookupTable(r, max)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return t, nil
}

// openTableBucket splits a location into a bucket and the key of the table
// inside it.
func openTableBucket(ctx context.Context, location string) (*blob.Bucket, string, error) {
	if location == "" {
		return nil, "", errors.New("empty location")
	}
	if !strings.Contains(location, "://") {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, "", err
		}
		b, err := fileblob.OpenBucket(filepath.Dir(abs), nil)
		return b, filepath.Base(abs), err
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, "", err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme == fileblob.Scheme {
		// The bucket of a file URL is its directory.
		dir, base := path.Split(u.Path)
		u.Path = dir
		key = base
	} else {
		u.Path = ""
	}
	if key == "" {
		return nil, "", fmt.Errorf("no object key in %q", location)
	}
	b, err := blob.OpenBucket(ctx, u.String())
	return b, key, err
}
