package fonts

import (
	"compress/flate"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
)

const (
	firstChar = 32
	lastChar  = 255
)

// trueTypeFont is a TrueType font embedded whole as FontFile2 and used as
// a simple font with WinAnsiEncoding.
type trueTypeFont struct {
	name        string
	data        []byte
	widths      [lastChar - firstChar + 1]int
	missing     int
	italicAngle float64
	ascent      float64
	descent     float64
	capHeight   float64
	bbox        [4]float64
}

// LoadTrueType parses a TrueType/OpenType font and extracts the metrics
// needed to place and embed it.
func LoadTrueType(name string, data []byte) (Font, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := f.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if baseName == "" {
		if ps, _ := f.Name(buf, sfnt.NameIDPostScript); ps != "" {
			baseName = ps
		} else {
			baseName = "CustomTT"
		}
	}

	t := &trueTypeFont{name: baseName, data: data}
	if adv, err := f.GlyphAdvance(buf, 0, ppem, xfont.HintingNone); err == nil {
		t.missing = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	for code := firstChar; code <= lastChar; code++ {
		t.widths[code-firstChar] = t.missing
		r := charmap.Windows1252.DecodeByte(byte(code))
		if r == utf8.RuneError {
			continue
		}
		gi, err := f.GlyphIndex(buf, r)
		if err != nil || gi == 0 {
			continue
		}
		adv, err := f.GlyphAdvance(buf, gi, ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		t.widths[code-firstChar] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}

	metrics, _ := f.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := f.Bounds(buf, ppem, xfont.HintingNone)
	t.ascent = scaleFixed(metrics.Ascent, unitsPerEm)
	t.descent = -scaleFixed(metrics.Descent, unitsPerEm)
	t.capHeight = scaleFixed(metrics.CapHeight, unitsPerEm)
	if t.capHeight == 0 {
		t.capHeight = t.ascent
	}
	// sfnt bounds use a y-down coordinate system.
	t.bbox = [4]float64{
		scaleFixed(bounds.Min.X, unitsPerEm),
		-scaleFixed(bounds.Max.Y, unitsPerEm),
		scaleFixed(bounds.Max.X, unitsPerEm),
		-scaleFixed(bounds.Min.Y, unitsPerEm),
	}
	if post := f.PostTable(); post != nil {
		t.italicAngle = post.ItalicAngle
	}
	return t, nil
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}

func (t *trueTypeFont) Name() string { return t.name }

func (t *trueTypeFont) Encode(text string) ([]byte, error) { return Encode(text) }

func (t *trueTypeFont) Width(text string, size float64) (float64, error) {
	codes, err := Encode(text)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range codes {
		if int(c) < firstChar {
			total += t.missing
			continue
		}
		total += t.widths[int(c)-firstChar]
	}
	return float64(total) * size / 1000, nil
}

func (t *trueTypeFont) Embed(doc ObjectAdder) raw.RefObj {
	fileDict := raw.Dict()
	fileDict.Set("Length1", raw.NumberInt(int64(len(t.data))))
	data := t.data
	if packed, err := filters.EncodeFlate(t.data, flate.BestCompression); err == nil {
		fileDict.Set("Filter", raw.Name("FlateDecode"))
		data = packed
	}
	file := doc.AddObject(raw.NewStream(fileDict, data))

	desc := raw.Dict()
	desc.Set("Type", raw.Name("FontDescriptor"))
	desc.Set("FontName", raw.Name(t.name))
	desc.Set("Flags", raw.NumberInt(32)) // nonsymbolic
	desc.Set("FontBBox", raw.NewArray(
		num(t.bbox[0]), num(t.bbox[1]), num(t.bbox[2]), num(t.bbox[3])))
	desc.Set("ItalicAngle", num(t.italicAngle))
	desc.Set("Ascent", num(t.ascent))
	desc.Set("Descent", num(t.descent))
	desc.Set("CapHeight", num(t.capHeight))
	desc.Set("StemV", raw.NumberInt(80))
	desc.Set("MissingWidth", raw.NumberInt(int64(t.missing)))
	desc.Set("FontFile2", file)
	descRef := doc.AddObject(desc)

	widths := raw.NewArray()
	for _, w := range t.widths {
		widths.Append(raw.NumberInt(int64(w)))
	}
	d := raw.Dict()
	d.Set("Type", raw.Name("Font"))
	d.Set("Subtype", raw.Name("TrueType"))
	d.Set("BaseFont", raw.Name(t.name))
	d.Set("FirstChar", raw.NumberInt(firstChar))
	d.Set("LastChar", raw.NumberInt(lastChar))
	d.Set("Widths", widths)
	d.Set("Encoding", raw.Name("WinAnsiEncoding"))
	d.Set("FontDescriptor", descRef)
	return doc.AddObject(d)
}

func num(f float64) raw.NumberObj {
	r := math.Round(f)
	if r == f {
		return raw.NumberInt(int64(r))
	}
	return raw.NumberFloat(f)
}
