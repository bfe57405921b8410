package ops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wudi/pdftools/contentstream"
	"github.com/wudi/pdftools/geometry"
	"github.com/wudi/pdftools/images"
)

type ImagesToPDFOptions struct {
	Images [][]byte `json:"-"`
	// PageSize is a catalog name; unknown names fall back to A4.
	PageSize    string  `json:"pageSize"`
	Orientation string  `json:"orientation"`
	Margin      float64 `json:"margin"`
	FitToPage   bool    `json:"fitToPage"`
}

func DefaultImagesToPDFOptions() ImagesToPDFOptions {
	return ImagesToPDFOptions{PageSize: "A4", Orientation: "portrait", Margin: 40, FitToPage: true}
}

// ImageError reports one input that could not be placed. Image is 1-based.
type ImageError struct {
	Image int    `json:"image"`
	Error string `json:"error"`
}

const unsupportedImageMsg = "Image format not supported. Use JPG or PNG."

type ImagesToPDFResult struct {
	Message               string       `json:"message"`
	InputImages           int          `json:"inputImages"`
	SuccessfullyConverted int          `json:"successfullyConverted"`
	Errors                []ImageError `json:"errors,omitempty"`
	PageSize              string       `json:"pageSize"`
	Orientation           string       `json:"orientation"`
	Margin                float64      `json:"margin"`
	Pages                 int          `json:"pages"`
	Output
}

// ImagesToPDF places each image on its own page. Images that fail to
// decode are reported in Errors; the call fails only when none succeed.
func (e *Engine) ImagesToPDF(ctx context.Context, opts ImagesToPDFOptions) (*ImagesToPDFResult, error) {
	c := e.begin(OpImagesToPDF)
	if len(opts.Images) == 0 {
		return nil, c.fail(newError(OpImagesToPDF, ErrMissingInput, "At least one image required"))
	}
	if opts.Margin < 0 {
		return nil, c.fail(newError(OpImagesToPDF, ErrInvalidOption, "Invalid margin: %v", opts.Margin))
	}
	size, _ := geometry.LookupPageSize(opts.PageSize)
	orientation := geometry.ParseOrientation(opts.Orientation)
	size = size.Oriented(orientation)

	doc := e.newDocument()
	var failures []ImageError
	for i, data := range opts.Images {
		if err := checkContext(ctx, OpImagesToPDF); err != nil {
			return nil, c.fail(err)
		}
		img, err := images.Decode(data)
		if err != nil {
			c.logger.Debug("image skipped")
			failures = append(failures, ImageError{Image: i + 1, Error: unsupportedImageMsg})
			continue
		}
		ref, err := img.Embed(doc)
		if err != nil {
			failures = append(failures, ImageError{Image: i + 1, Error: err.Error()})
			continue
		}
		page := doc.NewPage(size.Width, size.Height)
		name := page.AddResource("XObject", "Im", ref)
		r := geometry.PlaceImage(size.Width, size.Height, float64(img.Width), float64(img.Height), opts.Margin, opts.FitToPage)
		var b contentstream.Builder
		b.Save().Concat(r.Width, 0, 0, r.Height, r.X, r.Y).DrawXObject(name).Restore()
		page.AppendContent(b.Bytes())
	}

	converted := len(opts.Images) - len(failures)
	if converted == 0 {
		detail, _ := json.Marshal(failures)
		return nil, c.fail(newError(OpImagesToPDF, ErrUnsupportedImageFormat,
			"No images could be processed. Errors: %s", detail))
	}
	data, err := e.save(ctx, OpImagesToPDF, doc, false)
	if err != nil {
		return nil, c.fail(err)
	}
	pageSize := opts.PageSize
	if pageSize == "" {
		pageSize = geometry.DefaultPageSize.Name
	}
	c.done(doc.PageCount(), len(data))
	return &ImagesToPDFResult{
		Message:               fmt.Sprintf("%d image(s) converted to PDF", converted),
		InputImages:           len(opts.Images),
		SuccessfullyConverted: converted,
		Errors:                failures,
		PageSize:              pageSize,
		Orientation:           orientation.String(),
		Margin:                opts.Margin,
		Pages:                 doc.PageCount(),
		Output:                newOutput(data, e.filename("images_to_pdf")),
	}, nil
}
