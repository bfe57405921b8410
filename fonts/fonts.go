// Package fonts supplies the fonts overlay text is drawn with: the
// Standard-14 Helvetica and Courier families, which need no embedding, and
// the Go TrueType fonts, which are embedded whole.
package fonts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/pdftools/ir/raw"
)

var (
	ErrUnknownFont = errors.New("unknown font")
	ErrUnencodable = errors.New("text cannot be encoded with WinAnsiEncoding")
)

// ObjectAdder stores indirect objects; document.Document satisfies it.
type ObjectAdder interface {
	AddObject(obj raw.Object) raw.RefObj
}

// Font is a simple (single-byte, WinAnsi) font usable in a Tj operator.
type Font interface {
	// Name is the PDF BaseFont name.
	Name() string
	// Encode converts text to WinAnsi codes.
	Encode(text string) ([]byte, error)
	// Width returns the advance of text at size, in text space units.
	Width(text string, size float64) (float64, error)
	// Embed writes the font dictionary (and any font program) and returns
	// the reference to put in a page's /Font resources.
	Embed(doc ObjectAdder) raw.RefObj
}

// Encode converts text to WinAnsi (Windows-1252) codes.
func Encode(text string) ([]byte, error) {
	b, err := charmap.Windows1252.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnencodable, text)
	}
	return b, nil
}

var (
	goRegular = sync.OnceValues(func() (Font, error) { return LoadTrueType("GoRegular", goregular.TTF) })
	goBold    = sync.OnceValues(func() (Font, error) { return LoadTrueType("GoBold", gobold.TTF) })
)

var registry = map[string]func() (Font, error){
	"helvetica":      func() (Font, error) { return helvetica, nil },
	"helvetica-bold": func() (Font, error) { return helveticaBold, nil },
	"courier":        func() (Font, error) { return courier, nil },
	"courier-bold":   func() (Font, error) { return courierBold, nil },
	"goregular":      goRegular,
	"gobold":         goBold,
}

// Lookup returns the font registered under name (case-insensitive).
func Lookup(name string) (Font, error) {
	load, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFont, name)
	}
	return load()
}

// Names lists the registered font names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, load := range registry {
		f, err := load()
		if err != nil {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)
	return names
}
