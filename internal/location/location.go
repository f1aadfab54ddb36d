// Package location models the jurisdictions the pipeline processes and
// loads the roster of locations to run from a CSV file.
package location

import "fmt"

// Location is an abstract named jurisdiction.
type Location interface {
	// FullName returns the canonical display name used in search queries,
	// log tags, and output rows.
	FullName() string
}

// County represents a U.S. county (or parish, in Louisiana).
type County struct {
	Name     string
	State    string
	IsParish bool
	FIPS     string
}

// FullName returns "<name> County, <state>" or "<name> Parish, <state>"
// when IsParish is set.
func (c County) FullName() string {
	kind := "County"
	if c.IsParish {
		kind = "Parish"
	}
	return fmt.Sprintf("%s %s, %s", c.Name, kind, c.State)
}
