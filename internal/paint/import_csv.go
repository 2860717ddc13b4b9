package paint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
)

// csvProduct mirrors Product with CSV headers equal to the JSON names. Ids
// and CRM links are never imported.
type csvProduct struct {
	Brand            string   `csv:"brand"`
	Paint            string   `csv:"paint"`
	Interior         csvBool  `csv:"interior"`
	Exterior         csvBool  `csv:"exterior"`
	Finishes         string   `csv:"finishes"`
	Primer           csvBool  `csv:"primer"`
	PrimerNote       string   `csv:"primerNote"`
	ResidentialPrice csvFloat `csv:"residentialPrice"`
	CommercialPrice  csvFloat `csv:"commercialPrice"`
	Coverage         csvFloat `csv:"coverage"`
}

type csvBool bool

func (b *csvBool) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "true", "yes", "y", "1":
		*b = true
	case "false", "no", "n", "0", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %q", string(text))
	}
	return nil
}

type csvFloat float64

func (f *csvFloat) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = csvFloat(v)
	return nil
}

// ImportCSV parses a product catalog. The first row must be a header; rows
// without a brand and paint name are rejected with their line number.
func ImportCSV(r io.Reader) ([]Product, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if errors.Is(err, io.EOF) {
		return []Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	out := make([]Product, 0)
	line := 1
	for {
		var row csvProduct
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if strings.TrimSpace(row.Brand) == "" || strings.TrimSpace(row.Paint) == "" {
			return nil, fmt.Errorf("csv line %d: brand and paint are required", line)
		}
		out = append(out, Product{
			Brand:            strings.TrimSpace(row.Brand),
			Paint:            strings.TrimSpace(row.Paint),
			Interior:         bool(row.Interior),
			Exterior:         bool(row.Exterior),
			Finishes:         strings.TrimSpace(row.Finishes),
			Primer:           bool(row.Primer),
			PrimerNote:       strings.TrimSpace(row.PrimerNote),
			ResidentialPrice: float64(row.ResidentialPrice),
			CommercialPrice:  float64(row.CommercialPrice),
			Coverage:         float64(row.Coverage),
		})
	}
	return out, nil
}
