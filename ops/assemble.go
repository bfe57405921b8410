package ops

import (
	"context"
	"fmt"
	"math"

	"github.com/wudi/pdftools/pages"
)

// MergeOptions lists the documents to concatenate, in order.
type MergeOptions struct {
	Documents [][]byte `json:"-"`
}

func DefaultMergeOptions() MergeOptions { return MergeOptions{} }

type MergeResult struct {
	Message         string `json:"message"`
	InputFiles      int    `json:"inputFiles"`
	TotalInputPages int    `json:"totalInputPages"`
	OutputPages     int    `json:"outputPages"`
	Output
}

// Merge appends every page of every input to a new document.
func (e *Engine) Merge(ctx context.Context, opts MergeOptions) (*MergeResult, error) {
	c := e.begin(OpMerge)
	switch len(opts.Documents) {
	case 0:
		return nil, c.fail(newError(OpMerge, ErrMissingInput, "At least 2 PDF files required"))
	case 1:
		return nil, c.fail(newError(OpMerge, ErrInvalidSelector, "At least 2 PDF files required"))
	}

	out := e.newDocument()
	total := 0
	for i, data := range opts.Documents {
		if err := checkContext(ctx, OpMerge); err != nil {
			return nil, c.fail(err)
		}
		src, err := e.load(ctx, OpMerge, data)
		if err != nil {
			return nil, c.fail(inputError(err, i+1))
		}
		total += src.PageCount()
		if err := copyInto(ctx, OpMerge, out, src, allIndices(src.PageCount())); err != nil {
			return nil, c.fail(inputError(err, i+1))
		}
	}

	data, err := e.save(ctx, OpMerge, out, false)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done(out.PageCount(), len(data))
	return &MergeResult{
		Message:         fmt.Sprintf("Successfully merged %d PDFs", len(opts.Documents)),
		InputFiles:      len(opts.Documents),
		TotalInputPages: total,
		OutputPages:     out.PageCount(),
		Output:          newOutput(data, e.filename("merged")),
	}, nil
}

// inputError prefixes the message with the 1-based input position.
func inputError(err error, n int) error {
	if oe, ok := err.(*Error); ok {
		cp := *oe
		cp.Msg = fmt.Sprintf("Error processing PDF #%d: %s", n, oe.Msg)
		return &cp
	}
	return err
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// SplitOptions selects the parts to produce. With no ranges, or with
// SplitAll, every page becomes its own document.
type SplitOptions struct {
	Document []byte        `json:"-"`
	Ranges   []pages.Range `json:"ranges"`
	SplitAll bool          `json:"splitAll"`
}

func DefaultSplitOptions() SplitOptions { return SplitOptions{} }

// SplitDocument is one part of a split.
type SplitDocument struct {
	Index     int    `json:"index"`
	Range     string `json:"range"`
	Pages     int    `json:"pages"`
	SizeBytes int    `json:"sizeBytes"`
	SizeKB    int    `json:"sizeKB"`
	PDF       []byte `json:"pdf"`
	Filename  string `json:"filename"`
}

type SplitResult struct {
	Message          string          `json:"message"`
	OriginalPages    int             `json:"originalPages"`
	DocumentsCreated int             `json:"documentsCreated"`
	Documents        []SplitDocument `json:"documents"`
}

// Split produces one document per range. Every range is validated before
// any output is built.
func (e *Engine) Split(ctx context.Context, opts SplitOptions) (*SplitResult, error) {
	c := e.begin(OpSplit)
	src, err := e.load(ctx, OpSplit, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	ranges := opts.Ranges
	if opts.SplitAll || len(ranges) == 0 {
		ranges = pages.EachPage(src.PageCount())
	}
	groups, err := pages.ValidateRanges(ranges, src.PageCount())
	if err != nil {
		return nil, c.fail(selectorError(OpSplit, err))
	}

	res := &SplitResult{OriginalPages: src.PageCount(), Documents: make([]SplitDocument, 0, len(groups))}
	total := 0
	for i, group := range groups {
		part := e.newDocument()
		if err := copyInto(ctx, OpSplit, part, src, group); err != nil {
			return nil, c.fail(err)
		}
		data, err := e.save(ctx, OpSplit, part, false)
		if err != nil {
			return nil, c.fail(err)
		}
		total += len(data)
		res.Documents = append(res.Documents, SplitDocument{
			Index:     i + 1,
			Range:     ranges[i].String(),
			Pages:     len(group),
			SizeBytes: len(data),
			SizeKB:    kb(len(data)),
			PDF:       data,
			Filename:  e.filename("split_" + ranges[i].String()),
		})
	}
	res.DocumentsCreated = len(res.Documents)
	res.Message = fmt.Sprintf("PDF split into %d documents", res.DocumentsCreated)
	c.done(src.PageCount(), total)
	return res, nil
}

// ExtractPagesOptions names the pages to keep. Pages is required.
type ExtractPagesOptions struct {
	Document []byte         `json:"-"`
	Pages    pages.Selector `json:"pages"`
}

func DefaultExtractPagesOptions() ExtractPagesOptions { return ExtractPagesOptions{} }

type ExtractPagesResult struct {
	Message          string `json:"message"`
	OriginalPages    int    `json:"originalPages"`
	ExtractedPages   []int  `json:"extractedPages"`
	NewDocumentPages int    `json:"newDocumentPages"`
	Output
}

// ExtractPages builds a new document from the selected pages in ascending
// order.
func (e *Engine) ExtractPages(ctx context.Context, opts ExtractPagesOptions) (*ExtractPagesResult, error) {
	c := e.begin(OpExtractPages)
	if opts.Pages.Kind() == pages.KindAll || opts.Pages.IsEmpty() {
		return nil, c.fail(newError(OpExtractPages, ErrMissingInput, "Pages to extract required."))
	}
	src, err := e.load(ctx, OpExtractPages, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	indices, err := resolveRequired(OpExtractPages, opts.Pages, src.PageCount(),
		"No valid pages to extract. PDF has %d pages.", src.PageCount())
	if err != nil {
		return nil, c.fail(err)
	}

	out := e.newDocument()
	if err := copyInto(ctx, OpExtractPages, out, src, indices); err != nil {
		return nil, c.fail(err)
	}
	data, err := e.save(ctx, OpExtractPages, out, false)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done(out.PageCount(), len(data))
	return &ExtractPagesResult{
		Message:          fmt.Sprintf("Extracted %d page(s)", len(indices)),
		OriginalPages:    src.PageCount(),
		ExtractedPages:   pages.PageNumbersOf(indices),
		NewDocumentPages: out.PageCount(),
		Output:           newOutput(data, e.filename("extracted_pages")),
	}, nil
}

// PDFToImagesOptions selects the pages to emit; the zero Pages is All.
type PDFToImagesOptions struct {
	Document []byte         `json:"-"`
	Pages    pages.Selector `json:"pages"`
}

func DefaultPDFToImagesOptions() PDFToImagesOptions {
	return PDFToImagesOptions{Pages: pages.All()}
}

// PageDocument is one page emitted as its own document.
type PageDocument struct {
	PageNumber int    `json:"pageNumber"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SizeBytes  int    `json:"sizeBytes"`
	SizeKB     int    `json:"sizeKB"`
	PDF        []byte `json:"pdf"`
	Filename   string `json:"filename"`
}

type PDFToImagesResult struct {
	Message              string         `json:"message"`
	TotalPagesInOriginal int            `json:"totalPagesInOriginal"`
	ExtractedCount       int            `json:"extractedCount"`
	Pages                []PageDocument `json:"pages"`
	Note                 string         `json:"note"`
}

// PDFToImages returns each selected page as a single-page document. Pages
// are not rasterized.
func (e *Engine) PDFToImages(ctx context.Context, opts PDFToImagesOptions) (*PDFToImagesResult, error) {
	c := e.begin(OpPDFToImages)
	src, err := e.load(ctx, OpPDFToImages, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	indices, err := resolveRequired(OpPDFToImages, opts.Pages, src.PageCount(), "No valid pages selected")
	if err != nil {
		return nil, c.fail(err)
	}

	res := &PDFToImagesResult{
		TotalPagesInOriginal: src.PageCount(),
		Pages:                make([]PageDocument, 0, len(indices)),
		Note:                 "Each page is returned as a separate single-page PDF",
	}
	total := 0
	for _, idx := range indices {
		single := e.newDocument()
		if err := copyInto(ctx, OpPDFToImages, single, src, []int{idx}); err != nil {
			return nil, c.fail(err)
		}
		data, err := e.save(ctx, OpPDFToImages, single, false)
		if err != nil {
			return nil, c.fail(err)
		}
		total += len(data)
		page, _ := src.Page(idx)
		res.Pages = append(res.Pages, PageDocument{
			PageNumber: idx + 1,
			Width:      int(math.Round(page.Width())),
			Height:     int(math.Round(page.Height())),
			SizeBytes:  len(data),
			SizeKB:     kb(len(data)),
			PDF:        data,
			Filename:   e.filename(fmt.Sprintf("page_%d", idx+1)),
		})
	}
	res.ExtractedCount = len(res.Pages)
	res.Message = fmt.Sprintf("Extracted %d page(s) from PDF", res.ExtractedCount)
	c.done(res.ExtractedCount, total)
	return res, nil
}
