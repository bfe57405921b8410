package fonts

import "github.com/wudi/pdftools/ir/raw"

// standardFont is one of the Standard-14 fonts every reader provides.
// Widths cover codes 32..126; other codes use fallback.
type standardFont struct {
	name     string
	widths   *[95]int
	fallback int
}

func (f *standardFont) Name() string { return f.name }

func (f *standardFont) Encode(text string) ([]byte, error) { return Encode(text) }

func (f *standardFont) Width(text string, size float64) (float64, error) {
	codes, err := Encode(text)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range codes {
		if c >= 32 && c <= 126 {
			total += f.widths[c-32]
		} else {
			total += f.fallback
		}
	}
	return float64(total) * size / 1000, nil
}

func (f *standardFont) Embed(doc ObjectAdder) raw.RefObj {
	d := raw.Dict()
	d.Set("Type", raw.Name("Font"))
	d.Set("Subtype", raw.Name("Type1"))
	d.Set("BaseFont", raw.Name(f.name))
	d.Set("Encoding", raw.Name("WinAnsiEncoding"))
	return doc.AddObject(d)
}

// AFM advance widths, codes 32..126.
var helveticaWidths = [95]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278, // space../
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, // 0..9
	278, 278, 584, 584, 584, 556, 1015, // :..@
	667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, // A..M
	722, 778, 667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, // N..Z
	278, 278, 278, 469, 556, 333, // [..`
	556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, // a..m
	556, 556, 556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, // n..z
	334, 260, 334, 584, // {..~
}

var helveticaBoldWidths = [95]int{
	278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556,
	333, 333, 584, 584, 584, 611, 975,
	722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833,
	722, 778, 667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611,
	333, 278, 333, 584, 556, 333,
	556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889,
	611, 611, 611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500,
	389, 280, 389, 584,
}

var courierWidths = func() *[95]int {
	var w [95]int
	for i := range w {
		w[i] = 600
	}
	return &w
}()

var (
	helvetica     = &standardFont{name: "Helvetica", widths: &helveticaWidths, fallback: 556}
	helveticaBold = &standardFont{name: "Helvetica-Bold", widths: &helveticaBoldWidths, fallback: 611}
	courier       = &standardFont{name: "Courier", widths: courierWidths, fallback: 600}
	courierBold   = &standardFont{name: "Courier-Bold", widths: courierWidths, fallback: 600}
)
