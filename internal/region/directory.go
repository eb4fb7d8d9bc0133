// Package region maps plate prefixes to the region that issued them.
package region

import (
	"sort"
	"strings"

	"anpr-locker/internal/domain/anpr"
)

var defaultTable = map[anpr.RegionCode]string{
	"AN": "Andaman and Nicobar",
	"AP": "Andhra Pradesh",
	"AR": "Arunachal Pradesh",
	"AS": "Assam",
	"BR": "Bihar",
	"CH": "Chandigarh",
	"DN": "Dadra and Nagar Haveli",
	"DD": "Daman and Diu",
	"DL": "Delhi",
	"GA": "Goa",
	"GJ": "Gujarat",
	"HR": "Haryana",
	"HP": "Himachal Pradesh",
	"JK": "Jammu and Kashmir",
	"KA": "Karnataka",
	"KL": "Kerala",
	"LD": "Lakshadweep",
	"MP": "Madhya Pradesh",
	"MH": "Maharashtra",
	"MN": "Manipur",
	"ML": "Meghalaya",
	"MZ": "Mizoram",
	"NL": "Nagaland",
	"OD": "Odisha",
	"PY": "Pondicherry",
	"PN": "Punjab",
	"RJ": "Rajasthan",
	"SK": "Sikkim",
	"TN": "Tamil Nadu",
	"TR": "Tripura",
	"UP": "Uttar Pradesh",
	"WB": "West Bengal",
	"CG": "Chhattisgarh",
	"TS": "Telangana",
	"JH": "Jharkhand",
	"UK": "Uttarakhand",
}

// Directory is an immutable code to region-name table. It is safe for
// concurrent use.
type Directory struct {
	names map[anpr.RegionCode]string
}

// Default returns the built-in directory.
func Default() *Directory {
	return New(defaultTable)
}

// New copies table into a new Directory.
func New(table map[anpr.RegionCode]string) *Directory {
	names := make(map[anpr.RegionCode]string, len(table))
	for code, name := range table {
		names[code] = name
	}
	return &Directory{names: names}
}

func (d *Directory) Lookup(code anpr.RegionCode) (string, bool) {
	name, ok := d.names[code]
	return name, ok
}

func (d *Directory) Len() int {
	return len(d.names)
}

// Entries returns every code/name pair ordered by code.
func (d *Directory) Entries() []anpr.Resolution {
	out := make([]anpr.Resolution, 0, len(d.names))
	for code, name := range d.names {
		out = append(out, anpr.Resolution{Code: code, Region: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Resolve matches the first two characters of text, case-insensitively,
// against the directory. The rest of text is not inspected.
func (d *Directory) Resolve(text string) (anpr.Resolution, bool) {
	if len(text) < 2 {
		return anpr.Resolution{}, false
	}
	code := anpr.RegionCode(strings.ToUpper(text[:2]))
	name, ok := d.Lookup(code)
	if !ok {
		return anpr.Resolution{}, false
	}
	return anpr.Resolution{Code: code, Region: name}, true
}
