// Package tabular reads and writes the flat property table as CSV.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"comps_dedup/internal/domain"
)

// Columns is the output column order. Input may carry more columns, in any
// order; unknown ones are ignored.
var Columns = []string{
	"property_id", "subject_id", "order_id", "address", "structure_type",
	"close_price", "gla_sqft", "bedrooms_total", "latitude", "longitude",
	"city", "province", "postal_code", "close_date", "year_built",
	"lot_size_sqft", "bathrooms_equivalent",
}

// headerAliases maps alternative input headers onto Columns.
var headerAliases = map[string]string{
	"orderid":        "order_id",
	"state_province": "province",
	"gla":            "gla_sqft",
	"lot_size_sf":    "lot_size_sqft",
}

type field struct {
	str   func(*domain.PropertyRecord) **string
	num   func(*domain.PropertyRecord) **float64
	year  bool
	ident func(*domain.PropertyRecord) *int64
}

var fields = map[string]field{
	"property_id":          {ident: func(p *domain.PropertyRecord) *int64 { return &p.PropertyID }},
	"subject_id":           {ident: func(p *domain.PropertyRecord) *int64 { return &p.SubjectID }},
	"order_id":             {str: func(p *domain.PropertyRecord) **string { return &p.OrderID }},
	"address":              {str: func(p *domain.PropertyRecord) **string { return &p.Address }},
	"structure_type":       {str: func(p *domain.PropertyRecord) **string { return &p.StructureType }},
	"close_price":          {num: func(p *domain.PropertyRecord) **float64 { return &p.ClosePrice }},
	"gla_sqft":             {num: func(p *domain.PropertyRecord) **float64 { return &p.GLASqft }},
	"bedrooms_total":       {num: func(p *domain.PropertyRecord) **float64 { return &p.BedroomsTotal }},
	"latitude":             {num: func(p *domain.PropertyRecord) **float64 { return &p.Latitude }},
	"longitude":            {num: func(p *domain.PropertyRecord) **float64 { return &p.Longitude }},
	"city":                 {str: func(p *domain.PropertyRecord) **string { return &p.City }},
	"province":             {str: func(p *domain.PropertyRecord) **string { return &p.Province }},
	"postal_code":          {str: func(p *domain.PropertyRecord) **string { return &p.PostalCode }},
	"close_date":           {str: func(p *domain.PropertyRecord) **string { return &p.CloseDate }},
	"year_built":           {year: true},
	"lot_size_sqft":        {num: func(p *domain.PropertyRecord) **float64 { return &p.LotSizeSqft }},
	"bathrooms_equivalent": {num: func(p *domain.PropertyRecord) **float64 { return &p.BathroomsEquivalent }},
}

// isNull matches the ways dataframe exports spell a missing value.
func isNull(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na", "n/a":
		return true
	}
	return false
}

// ReadCSV decodes a header-led CSV. property_id and subject_id columns are
// required; every other cell that is empty or NaN-like becomes nil.
func ReadCSV(r io.Reader) ([]domain.PropertyRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make([]string, len(header))
	seen := map[string]bool{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, known := fields[name]; known && !seen[name] {
			cols[i] = name
			seen[name] = true
		}
	}
	for _, req := range []string{"property_id", "subject_id"} {
		if !seen[req] {
			return nil, fmt.Errorf("missing %s column: %w", req, domain.ErrInvalidRecord)
		}
	}

	var out []domain.PropertyRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := idWidth(cols); len(row) < n {
			return nil, fmt.Errorf("line %d: row ends before the id columns: %w", line, domain.ErrInvalidRecord)
		}
		var p domain.PropertyRecord
		for i, cell := range row {
			if i >= len(cols) || cols[i] == "" {
				continue
			}
			if err := setCell(&p, cols[i], strings.TrimSpace(cell)); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, cols[i], err)
			}
		}
		out = append(out, p)
	}
}

// idWidth is how many cells a row needs to reach both id columns.
func idWidth(cols []string) int {
	n := 0
	for i, c := range cols {
		if c == "property_id" || c == "subject_id" {
			n = i + 1
		}
	}
	return n
}

func setCell(p *domain.PropertyRecord, col, cell string) error {
	f := fields[col]
	switch {
	case f.ident != nil:
		if isNull(cell) {
			// zero is a real subject, so a blank id cannot default to it
			return fmt.Errorf("missing id: %w", domain.ErrInvalidRecord)
		}
		v, err := parseNumber(cell)
		if err != nil || v != math.Trunc(v) {
			return fmt.Errorf("bad id %q: %w", cell, domain.ErrInvalidRecord)
		}
		*f.ident(p) = int64(v)
	case f.str != nil:
		if cell != "" {
			s := cell
			*f.str(p) = &s
		}
	case f.num != nil:
		if isNull(cell) {
			return nil
		}
		v, err := parseNumber(cell)
		if err != nil {
			// unparsable data is missing data
			return nil
		}
		*f.num(p) = &v
	case f.year:
		if isNull(cell) {
			return nil
		}
		if v, err := parseNumber(cell); err == nil {
			y := int(v)
			p.YearBuilt = &y
		}
	}
	return nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.NewReplacer(",", "", "$", "").Replace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return v, nil
}

// WriteCSV writes records with the Columns header; nil values are empty cells.
func WriteCSV(w io.Writer, records []domain.PropertyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	row := make([]string, len(Columns))
	for i := range records {
		p := &records[i]
		for j, col := range Columns {
			row[j] = formatCell(p, col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(p *domain.PropertyRecord, col string) string {
	f := fields[col]
	switch {
	case f.ident != nil:
		return strconv.FormatInt(*f.ident(p), 10)
	case f.str != nil:
		if s := *f.str(p); s != nil {
			return *s
		}
	case f.num != nil:
		if v := *f.num(p); v != nil {
			return strconv.FormatFloat(*v, 'f', -1, 64)
		}
	case f.year:
		if p.YearBuilt != nil {
			return strconv.Itoa(*p.YearBuilt)
		}
	}
	return ""
}
