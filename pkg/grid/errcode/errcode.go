// Package errcode classifies the numeric status codes returned by the remote
// data grid.
//
// Two independent mechanisms are provided:
//
//   - Classify maps any code onto one of the protocol's reserved code blocks
//     (system, catalog, auth, ...). Unknown codes map to Unknown.
//   - Code constants name individual, well-known codes so call sites can pick
//     a precise domain error (e.g. access denied) instead of a generic failure.
//
// The remote protocol reports failures as negative integers. All lookups work
// on the absolute value.
package errcode

import (
	"errors"
	"fmt"
	"sort"
)

// Category is a named, half-open range [Min, Max) of absolute status codes.
type Category struct {
	Name string
	Min  int64
	Max  int64
}

// Contains reports whether the absolute value of code lies inside the range.
func (c Category) Contains(code int64) bool {
	code = abs(code)
	return code >= c.Min && code < c.Max
}

func (c Category) String() string {
	return c.Name
}

// Unknown is returned by Classify when no range contains the code.
var Unknown = Category{Name: "unknown", Min: -1, Max: -1}

// Reserved code blocks of the remote protocol. Boundaries are fixed by the
// protocol and must not be changed.
var (
	System     = Category{Name: "system", Min: 1_000, Max: 300_000}
	UserInput  = Category{Name: "user-input", Min: 300_000, Max: 500_000}
	FileDriver = Category{Name: "file-driver", Min: 500_000, Max: 800_000}
	Catalog    = Category{Name: "catalog", Min: 800_000, Max: 880_000}
	RDA        = Category{Name: "rda", Min: 880_000, Max: 890_000}
	Ticket     = Category{Name: "ticket", Min: 890_000, Max: 900_000}
	Misc       = Category{Name: "misc", Min: 900_000, Max: 920_000}
	Auth       = Category{Name: "auth", Min: 920_000, Max: 1_000_000}
	RuleEngine = Category{Name: "rule-engine", Min: 1_000_000, Max: 1_600_000}
	Scripting  = Category{Name: "scripting", Min: 1_600_000, Max: 1_700_000}
	NetCDF     = Category{Name: "netcdf", Min: 2_000_000, Max: 2_100_000}
	SSL        = Category{Name: "ssl", Min: 2_100_000, Max: 2_200_000}
)

// table is sorted by Min. ValidateTable enforces this together with
// non-overlap.
var table = []Category{
	System,
	UserInput,
	FileDriver,
	Catalog,
	RDA,
	Ticket,
	Misc,
	Auth,
	RuleEngine,
	Scripting,
	NetCDF,
	SSL,
}

func init() {
	if err := ValidateTable(table); err != nil {
		panic(err)
	}
}

// Categories returns a copy of the classification table in ascending order.
func Categories() []Category {
	out := make([]Category, len(table))
	copy(out, table)
	return out
}

// Classify returns the category containing code, or Unknown.
func Classify(code int64) Category {
	code = abs(code)

	// First range whose Max is above code; it contains code only if Min <= code.
	i := sort.Search(len(table), func(i int) bool {
		return table[i].Max > code
	})
	if i < len(table) && table[i].Min <= code {
		return table[i]
	}
	return Unknown
}

// ValidateTable checks that every range is non-empty, that ranges are sorted
// by Min and that no two ranges overlap.
func ValidateTable(categories []Category) error {
	var errs []error
	for i, c := range categories {
		if c.Min >= c.Max {
			errs = append(errs, fmt.Errorf("category %q: empty range [%d, %d)", c.Name, c.Min, c.Max))
		}
		if i == 0 {
			continue
		}
		prev := categories[i-1]
		if c.Min < prev.Min {
			errs = append(errs, fmt.Errorf("category %q: not sorted after %q", c.Name, prev.Name))
		}
		if c.Min < prev.Max {
			errs = append(errs, fmt.Errorf("category %q [%d, %d) overlaps %q [%d, %d)",
				c.Name, c.Min, c.Max, prev.Name, prev.Min, prev.Max))
		}
	}
	return errors.Join(errs...)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
