package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/parser"
)

var (
	ErrEncrypted    = errors.New("document is encrypted")
	ErrNoPages      = errors.New("document has no page tree")
	ErrPageRange    = errors.New("page index out of range")
	ErrForeignPage  = errors.New("page belongs to another document")
	ErrPageTreeLoop = errors.New("page tree contains a cycle")
)

const maxTreeDepth = 64

// Document is an owned, mutable page model. It is not safe for concurrent
// use; each operation works on its own instances.
type Document struct {
	Info Info

	version   string
	encrypted bool
	catalog   *raw.DictObj // catalog entries other than /Pages
	objects   map[raw.ObjectRef]raw.Object
	pages     []*Page
	pageRefs  map[raw.ObjectRef]bool // every page identity ever held
	nextNum   int
	logger    observability.Logger
}

// LoadOptions controls Load.
type LoadOptions struct {
	Parser           parser.Config
	IgnoreEncryption bool
}

// New returns an empty document.
func New() *Document {
	catalog := raw.Dict()
	return &Document{
		version:  "1.7",
		catalog:  catalog,
		objects:  make(map[raw.ObjectRef]raw.Object),
		pageRefs: make(map[raw.ObjectRef]bool),
		nextNum:  1,
		logger:   observability.NopLogger{},
	}
}

// Load parses data into a Document. Encrypted files are rejected unless
// IgnoreEncryption is set, in which case their structure is loaded as stored.
func Load(ctx context.Context, data []byte, opts LoadOptions) (*Document, error) {
	rawDoc, err := parser.NewDocumentParser(opts.Parser).Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if rawDoc.Encrypted && !opts.IgnoreEncryption {
		return nil, ErrEncrypted
	}
	d := New()
	if opts.Parser.Logger != nil {
		d.logger = opts.Parser.Logger
	}
	d.version = rawDoc.Version
	d.encrypted = rawDoc.Encrypted
	d.objects = rawDoc.Objects
	for ref := range rawDoc.Objects {
		if ref.Num >= d.nextNum {
			d.nextNum = ref.Num + 1
		}
	}

	catalog, ok := rawDoc.Resolve(rawDoc.Trailer.KV["Root"]).(*raw.DictObj)
	if !ok {
		return nil, parser.ErrNoRoot
	}
	d.catalog = raw.Clone(catalog).(*raw.DictObj)
	d.catalog.Delete("Pages")
	if info, ok := rawDoc.Resolve(rawDoc.Trailer.KV["Info"]).(*raw.DictObj); ok {
		d.Info = readInfo(info, rawDoc.Resolve)
	}

	rootRef, ok := catalog.KV["Pages"].(raw.RefObj)
	if !ok {
		return nil, ErrNoPages
	}
	if err := d.collectPages(ctx, rawDoc, rootRef.R, inherited{}, 0, make(map[raw.ObjectRef]bool)); err != nil {
		return nil, err
	}
	d.logger.Debug("document loaded",
		observability.Int("pages", len(d.pages)),
		observability.Int("objects", len(d.objects)),
		observability.String("version", d.version))
	return d, nil
}

type inherited struct {
	resources, mediaBox, cropBox, rotate raw.Object
}

func (d *Document) collectPages(ctx context.Context, rawDoc *raw.Document, ref raw.ObjectRef, inh inherited, depth int, seen map[raw.ObjectRef]bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > maxTreeDepth {
		return ErrPageTreeLoop
	}
	if seen[ref] {
		// A node listed twice is kept once.
		return nil
	}
	seen[ref] = true
	node, ok := rawDoc.Objects[ref].(*raw.DictObj)
	if !ok {
		// Dangling kids are dropped, as viewers do.
		return nil
	}
	pick := func(key string, cur raw.Object) raw.Object {
		if v, ok := node.Get(key); ok {
			return v
		}
		return cur
	}
	inh = inherited{
		resources: pick("Resources", inh.resources),
		mediaBox:  pick("MediaBox", inh.mediaBox),
		cropBox:   pick("CropBox", inh.cropBox),
		rotate:    pick("Rotate", inh.rotate),
	}
	typ, _ := node.Name("Type")
	kids, hasKids := rawDoc.Resolve(node.KV["Kids"]).(*raw.ArrayObj)
	if typ == "Page" || (typ != "Pages" && !hasKids) {
		dict := raw.Clone(node).(*raw.DictObj)
		dict.Delete("Parent")
		dict.Set("Type", raw.Name("Page"))
		for key, val := range map[string]raw.Object{
			"Resources": inh.resources, "MediaBox": inh.mediaBox,
			"CropBox": inh.cropBox, "Rotate": inh.rotate,
		} {
			if val != nil {
				dict.Set(key, val)
			}
		}
		if _, ok := dict.Get("Resources"); !ok {
			dict.Set("Resources", raw.Dict())
		}
		d.pageRefs[ref] = true
		d.pages = append(d.pages, &Page{doc: d, ref: ref, dict: dict})
		return nil
	}
	if !hasKids {
		return nil
	}
	for _, kid := range kids.Items {
		kidRef, ok := kid.(raw.RefObj)
		if !ok {
			continue
		}
		if err := d.collectPages(ctx, rawDoc, kidRef.R, inh, depth+1, seen); err != nil {
			return err
		}
	}
	return nil
}

// SetLogger attaches a logger used by Save and page copying.
func (d *Document) SetLogger(l observability.Logger) {
	if l == nil {
		l = observability.NopLogger{}
	}
	d.logger = l
}

func (d *Document) Version() string { return d.version }

// Encrypted reports whether the source carried an /Encrypt entry.
func (d *Document) Encrypted() bool { return d.encrypted }

func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the page at zero-based index i.
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i, len(d.pages))
	}
	return d.pages[i], nil
}

// Pages returns the pages in order. The slice is a copy.
func (d *Document) Pages() []*Page {
	return append([]*Page(nil), d.pages...)
}

// AddObject stores obj as a new indirect object and returns its reference.
func (d *Document) AddObject(obj raw.Object) raw.RefObj {
	ref := d.alloc()
	d.objects[ref] = obj
	return raw.RefObj{R: ref}
}

// Object returns the indirect object behind ref, or NullObj.
func (d *Document) Object(ref raw.ObjectRef) raw.Object {
	if obj, ok := d.objects[ref]; ok {
		return obj
	}
	return raw.NullObj{}
}

// Resolve follows references within this document.
func (d *Document) Resolve(o raw.Object) raw.Object {
	for i := 0; i < 32; i++ {
		r, ok := o.(raw.RefObj)
		if !ok {
			return o
		}
		o = d.Object(r.R)
	}
	return raw.NullObj{}
}

func (d *Document) alloc() raw.ObjectRef {
	ref := raw.ObjectRef{Num: d.nextNum}
	d.nextNum++
	return ref
}

// NewPage appends a blank page with the given MediaBox size.
func (d *Document) NewPage(width, height float64) *Page {
	dict := raw.Dict()
	dict.Set("Type", raw.Name("Page"))
	dict.Set("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), number(width), number(height)))
	dict.Set("Resources", raw.Dict())
	p := &Page{doc: d, ref: d.alloc(), dict: dict}
	d.pageRefs[p.ref] = true
	d.pages = append(d.pages, p)
	return p
}

// AddPage appends a page produced by CopyPages on this document.
func (d *Document) AddPage(p *Page) error {
	return d.InsertPage(len(d.pages), p)
}

// InsertPage places p at index i.
func (d *Document) InsertPage(i int, p *Page) error {
	if p.doc != d {
		return ErrForeignPage
	}
	if i < 0 || i > len(d.pages) {
		return fmt.Errorf("%w: insert at %d of %d", ErrPageRange, i, len(d.pages))
	}
	for _, existing := range d.pages {
		if existing == p {
			return fmt.Errorf("page %v already in document", p.ref)
		}
	}
	d.pageRefs[p.ref] = true
	d.pages = append(d.pages, nil)
	copy(d.pages[i+1:], d.pages[i:])
	d.pages[i] = p
	return nil
}

// RemovePage drops the page at index i. References to it from elsewhere in
// the document become null on save.
func (d *Document) RemovePage(i int) error {
	if i < 0 || i >= len(d.pages) {
		return fmt.Errorf("%w: %d of %d", ErrPageRange, i, len(d.pages))
	}
	d.pages = append(d.pages[:i], d.pages[i+1:]...)
	return nil
}

// Stamp sets the modification date and, for new documents, the creation date.
func (d *Document) Stamp(now time.Time) {
	if d.Info.CreationDate.IsZero() {
		d.Info.CreationDate = now
	}
	d.Info.ModDate = now
}

func number(f float64) raw.NumberObj {
	if f == float64(int64(f)) {
		return raw.NumberInt(int64(f))
	}
	return raw.NumberFloat(f)
}
