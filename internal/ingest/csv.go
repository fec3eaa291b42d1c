// Package ingest parses and validates the uploaded stores and products CSV
// files. It is a boundary concern: nothing here schedules or retries.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pricehound/pricehound/pkg/models"
)

// MaxRows caps either file; a survey past this size should be split.
const MaxRows = 500

var (
	ErrEmptyFile    = errors.New("file contains no data rows")
	ErrTooManyRows  = errors.New("file exceeds the row limit")
	ErrDuplicateRow = errors.New("duplicate identifier")
)

var validate = validator.New()

type storeRow struct {
	Name string `validate:"required"`
	URL  string `validate:"required,url"`
}

type productRow struct {
	ID    string `validate:"required"`
	Name  string `validate:"required"`
	Brand string `validate:"required"`
}

// ParseStores reads a stores CSV with header "name,url".
func ParseStores(r io.Reader) ([]models.Store, error) {
	records, err := readRows(r, []string{"name", "url"})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]models.Store, 0, len(records))
	for i, rec := range records {
		row := storeRow{Name: strings.TrimSpace(rec[0]), URL: strings.TrimSpace(rec[1])}
		if err := validate.Struct(row); err != nil {
			return nil, fmt.Errorf("stores row %d: %w", i+2, err)
		}
		if seen[row.Name] {
			return nil, fmt.Errorf("stores row %d: store %q: %w", i+2, row.Name, ErrDuplicateRow)
		}
		seen[row.Name] = true
		out = append(out, models.Store{Name: row.Name, URL: row.URL})
	}
	return out, nil
}

// ParseProducts reads a products CSV with header "id,name,description,brand".
func ParseProducts(r io.Reader) ([]models.Product, error) {
	records, err := readRows(r, []string{"id", "name", "description", "brand"})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]models.Product, 0, len(records))
	for i, rec := range records {
		row := productRow{
			ID:    strings.TrimSpace(rec[0]),
			Name:  strings.TrimSpace(rec[1]),
			Brand: strings.TrimSpace(rec[3]),
		}
		if err := validate.Struct(row); err != nil {
			return nil, fmt.Errorf("products row %d: %w", i+2, err)
		}
		if seen[row.ID] {
			return nil, fmt.Errorf("products row %d: product %q: %w", i+2, row.ID, ErrDuplicateRow)
		}
		seen[row.ID] = true
		out = append(out, models.Product{
			ID:          row.ID,
			Name:        row.Name,
			Description: strings.TrimSpace(rec[2]),
			Brand:       row.Brand,
		})
	}
	return out, nil
}

// readRows parses the CSV, checks the header and enforces the row cap.
func readRows(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(first[i]), want) {
			return nil, fmt.Errorf("header column %d must be %q, got %q", i+1, want, first[i])
		}
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+2, err)
		}
		records = append(records, rec)
		if len(records) > MaxRows {
			return nil, ErrTooManyRows
		}
	}

	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return records, nil
}
