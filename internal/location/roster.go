package location

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingColumn is returned when a required roster column is absent.
var ErrMissingColumn = errors.New("location: missing required column")

// requiredColumns must all be present (case-insensitively) in the roster
// header.
var requiredColumns = []string{"county", "state"}

// LoadRoster reads a CSV roster of locations to process. The header row is
// required and matched case-insensitively; recognized columns are "county",
// "state", "is_parish" (optional, "true"/"1"/"yes"), and "fips" (optional).
// Extra columns are ignored. Rows with a blank county or state are skipped.
func LoadRoster(path string) ([]County, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("location: open roster: %w", err)
	}
	defer f.Close()
	return parseRoster(f)
}

func parseRoster(r io.Reader) ([]County, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("location: roster has no header row")
		}
		return nil, fmt.Errorf("location: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}
	isParishIdx, hasParish := idx["is_parish"]
	fipsIdx, hasFIPS := idx["fips"]

	var out []County
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("location: read row: %w", err)
		}
		county := strings.TrimSpace(field(rec, idx["county"]))
		state := strings.TrimSpace(field(rec, idx["state"]))
		if county == "" || state == "" {
			continue
		}
		c := County{Name: county, State: state}
		if hasParish {
			v := strings.ToLower(strings.TrimSpace(field(rec, isParishIdx)))
			c.IsParish = v == "true" || v == "1" || v == "yes"
		}
		if hasFIPS {
			c.FIPS = strings.TrimSpace(field(rec, fipsIdx))
		}
		out = append(out, c)
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
