package geometry

import (
	"sort"
	"strings"
)

// PageSize is a named paper size in points, portrait.
type PageSize struct {
	Name          string
	Width, Height float64
}

// Orientation of a page.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// ParseOrientation returns Landscape for "landscape" and Portrait for
// anything else.
func ParseOrientation(s string) Orientation {
	if strings.EqualFold(strings.TrimSpace(s), "landscape") {
		return Landscape
	}
	return Portrait
}

var pageSizes = map[string]PageSize{
	"a4":      {"A4", 595.28, 841.89},
	"a3":      {"A3", 841.89, 1190.55},
	"a5":      {"A5", 419.53, 595.28},
	"letter":  {"Letter", 612, 792},
	"legal":   {"Legal", 612, 1008},
	"tabloid": {"Tabloid", 792, 1224},
}

// DefaultPageSize is used for unknown names.
var DefaultPageSize = pageSizes["a4"]

// LookupPageSize finds a size by name, case-insensitively. ok is false
// when the name is unknown and A4 was substituted.
func LookupPageSize(name string) (size PageSize, ok bool) {
	size, ok = pageSizes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return DefaultPageSize, false
	}
	return size, true
}

// Oriented returns the size with its axes swapped for Landscape.
func (p PageSize) Oriented(o Orientation) PageSize {
	if o == Landscape {
		p.Width, p.Height = p.Height, p.Width
	}
	return p
}

// PageSizeNames lists the catalog names.
func PageSizeNames() []string {
	names := make([]string, 0, len(pageSizes))
	for _, s := range pageSizes {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
