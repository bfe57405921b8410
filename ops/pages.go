package ops

import (
	"context"
	"fmt"

	"github.com/wudi/pdftools/pages"
)

var validRotations = map[int]bool{90: true, 180: true, 270: true, -90: true, -180: true, -270: true}

type RotateOptions struct {
	Document []byte         `json:"-"`
	Rotation int            `json:"rotation"`
	Pages    pages.Selector `json:"pages"`
}

func DefaultRotateOptions() RotateOptions {
	return RotateOptions{Rotation: 90, Pages: pages.All()}
}

type RotateResult struct {
	Message      string `json:"message"`
	TotalPages   int    `json:"totalPages"`
	RotatedPages []int  `json:"rotatedPages"`
	Rotation     int    `json:"rotation"`
	Output
}

// Rotate adds Rotation to the selected pages' angles.
func (e *Engine) Rotate(ctx context.Context, opts RotateOptions) (*RotateResult, error) {
	c := e.begin(OpRotate)
	if !validRotations[opts.Rotation] {
		return nil, c.fail(newError(OpRotate, ErrInvalidOption,
			"Invalid rotation: %d. Use: 90, 180, 270, -90, -180, or -270", opts.Rotation))
	}
	doc, err := e.load(ctx, OpRotate, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	indices, err := pages.Resolve(opts.Pages, doc.PageCount())
	if err != nil {
		return nil, c.fail(selectorError(OpRotate, err))
	}
	for _, idx := range indices {
		if err := checkContext(ctx, OpRotate); err != nil {
			return nil, c.fail(err)
		}
		page, _ := doc.Page(idx)
		page.SetRotation(page.Rotation() + opts.Rotation)
	}
	data, err := e.save(ctx, OpRotate, doc, false)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done(len(indices), len(data))
	return &RotateResult{
		Message:      fmt.Sprintf("Rotated %d page(s) by %d°", len(indices), opts.Rotation),
		TotalPages:   doc.PageCount(),
		RotatedPages: pages.PageNumbersOf(indices),
		Rotation:     opts.Rotation,
		Output:       newOutput(data, e.filename(fmt.Sprintf("rotated_%ddeg", opts.Rotation))),
	}, nil
}

// DeletePagesOptions names the pages to remove. Pages is required.
type DeletePagesOptions struct {
	Document []byte         `json:"-"`
	Pages    pages.Selector `json:"pages"`
}

func DefaultDeletePagesOptions() DeletePagesOptions { return DeletePagesOptions{} }

type DeletePagesResult struct {
	Message        string `json:"message"`
	OriginalPages  int    `json:"originalPages"`
	DeletedPages   []int  `json:"deletedPages"`
	RemainingPages int    `json:"remainingPages"`
	Output
}

// DeletePages removes the valid selected pages. At least one page must
// remain.
func (e *Engine) DeletePages(ctx context.Context, opts DeletePagesOptions) (*DeletePagesResult, error) {
	c := e.begin(OpDeletePages)
	if opts.Pages.Kind() == pages.KindAll || opts.Pages.IsEmpty() {
		return nil, c.fail(newError(OpDeletePages, ErrMissingInput, "Pages to delete required."))
	}
	doc, err := e.load(ctx, OpDeletePages, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	original := doc.PageCount()
	indices, err := resolveRequired(OpDeletePages, opts.Pages, original,
		"No valid pages to delete. PDF has %d pages.", original)
	if err != nil {
		return nil, c.fail(err)
	}
	if len(indices) >= original {
		return nil, c.fail(newError(OpDeletePages, ErrWouldRemoveAllPages,
			"Cannot delete all pages. At least one page must remain."))
	}
	for _, idx := range pages.Descending(indices) {
		if err := doc.RemovePage(idx); err != nil {
			return nil, c.fail(wrapError(OpDeletePages, ErrInvalidSelector, err, "failed to delete page %d: %v", idx+1, err))
		}
	}
	data, err := e.save(ctx, OpDeletePages, doc, false)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done(doc.PageCount(), len(data))
	return &DeletePagesResult{
		Message:        fmt.Sprintf("Deleted %d page(s)", len(indices)),
		OriginalPages:  original,
		DeletedPages:   pages.PageNumbersOf(indices),
		RemainingPages: doc.PageCount(),
		Output:         newOutput(data, e.filename("pages_deleted")),
	}, nil
}
