package ops

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wudi/pdftools/contentstream"
	"github.com/wudi/pdftools/fonts"
	"github.com/wudi/pdftools/geometry"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/pages"
)

type AddTextOptions struct {
	Document []byte         `json:"-"`
	Text     string         `json:"text"`
	Pages    pages.Selector `json:"pages"`
	// Position is an anchor name; unknown names mean center.
	Position string  `json:"position"`
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color"`
	Opacity  float64 `json:"opacity"`
	// Rotation in degrees, counter-clockwise about the text origin.
	Rotation float64 `json:"rotation"`
	Font     string  `json:"font"`
	Margin   float64 `json:"margin"`
}

func DefaultAddTextOptions() AddTextOptions {
	return AddTextOptions{
		Pages:    pages.All(),
		Position: "center",
		FontSize: 40,
		Color:    "#888888",
		Opacity:  0.3,
		Rotation: -45,
		Font:     "Helvetica-Bold",
		Margin:   50,
	}
}

type AddTextResult struct {
	Message       string  `json:"message"`
	Text          string  `json:"text"`
	Position      string  `json:"position"`
	FontSize      float64 `json:"fontSize"`
	Color         string  `json:"color"`
	Opacity       float64 `json:"opacity"`
	Rotation      float64 `json:"rotation"`
	Font          string  `json:"font"`
	TotalPages    int     `json:"totalPages"`
	ModifiedPages []int   `json:"modifiedPages"`
	Output
}

// overlay is the validated drawing state shared by every page.
type overlay struct {
	font   fonts.Font
	codes  []byte
	width  float64
	size   float64
	color  geometry.Color
	anchor geometry.Anchor
	sin    float64
	cos    float64
}

func prepareOverlay(opts AddTextOptions) (*overlay, error) {
	if opts.Text == "" {
		return nil, newError(OpAddText, ErrMissingInput, "Text is required.")
	}
	if opts.FontSize <= 0 || math.IsNaN(opts.FontSize) || math.IsInf(opts.FontSize, 0) {
		return nil, newError(OpAddText, ErrInvalidOption, "Invalid font size: %v", opts.FontSize)
	}
	if opts.Opacity < 0 || opts.Opacity > 1 || math.IsNaN(opts.Opacity) {
		return nil, newError(OpAddText, ErrInvalidOption, "Invalid opacity: %v. Use a value between 0 and 1", opts.Opacity)
	}
	color, err := geometry.ParseHexColor(opts.Color)
	if err != nil {
		return nil, wrapError(OpAddText, ErrInvalidOption, err, "Invalid color: %q", opts.Color)
	}
	font, err := fonts.Lookup(opts.Font)
	if err != nil {
		return nil, wrapError(OpAddText, ErrInvalidOption, err, "Unknown font: %q. Use one of: %s",
			opts.Font, strings.Join(fonts.Names(), ", "))
	}
	codes, err := font.Encode(opts.Text)
	if err != nil {
		return nil, wrapError(OpAddText, ErrInvalidOption, err, "Text cannot be drawn with %s: %v", font.Name(), err)
	}
	width, err := font.Width(opts.Text, opts.FontSize)
	if err != nil {
		return nil, wrapError(OpAddText, ErrInvalidOption, err, "Text cannot be measured with %s: %v", font.Name(), err)
	}
	rad := opts.Rotation * math.Pi / 180
	return &overlay{
		font:   font,
		codes:  codes,
		width:  width,
		size:   opts.FontSize,
		color:  color,
		anchor: geometry.ParseAnchor(opts.Position),
		sin:    math.Sin(rad),
		cos:    math.Cos(rad),
	}, nil
}

// AddText draws a single line of text on each selected page.
func (e *Engine) AddText(ctx context.Context, opts AddTextOptions) (*AddTextResult, error) {
	c := e.begin(OpAddText)
	ov, err := prepareOverlay(opts)
	if err != nil {
		return nil, c.fail(err)
	}
	doc, err := e.load(ctx, OpAddText, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	indices, err := pages.Resolve(opts.Pages, doc.PageCount())
	if err != nil {
		return nil, c.fail(selectorError(OpAddText, err))
	}

	var fontRef, gsRef raw.RefObj
	if len(indices) > 0 {
		fontRef = ov.font.Embed(doc)
		gs := raw.Dict()
		gs.Set("Type", raw.Name("ExtGState"))
		gs.Set("ca", raw.NumberFloat(opts.Opacity))
		gs.Set("CA", raw.NumberFloat(opts.Opacity))
		gsRef = doc.AddObject(gs)
	}
	for _, idx := range indices {
		if err := checkContext(ctx, OpAddText); err != nil {
			return nil, c.fail(err)
		}
		page, _ := doc.Page(idx)
		box := page.MediaBox()
		r := geometry.PlaceOverlay(box.Width(), box.Height(), ov.width, ov.size, ov.anchor, opts.Margin)
		fontName := page.AddResource("Font", "F", fontRef)
		gsName := page.AddResource("ExtGState", "GS", gsRef)

		var b contentstream.Builder
		b.Save().ExtGState(gsName).FillRGB(ov.color.R, ov.color.G, ov.color.B).
			BeginText().Font(fontName, ov.size).
			TextMatrix(ov.cos, ov.sin, -ov.sin, ov.cos, box.LLX+r.X, box.LLY+r.Y).
			ShowText(ov.codes).EndText().Restore()
		page.AppendContent(b.Bytes())
	}

	data, err := e.save(ctx, OpAddText, doc, false)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done(len(indices), len(data))
	return &AddTextResult{
		Message:       fmt.Sprintf("Added text to %d page(s)", len(indices)),
		Text:          opts.Text,
		Position:      ov.anchor.String(),
		FontSize:      opts.FontSize,
		Color:         opts.Color,
		Opacity:       opts.Opacity,
		Rotation:      opts.Rotation,
		Font:          ov.font.Name(),
		TotalPages:    doc.PageCount(),
		ModifiedPages: pages.PageNumbersOf(indices),
		Output:        newOutput(data, e.filename("watermarked")),
	}, nil
}
