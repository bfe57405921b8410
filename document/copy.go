package document

import (
	"context"
	"fmt"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
)

// CopyPages clones the pages of src at the given indices into d. Every
// object the pages reach is deep-copied into d's object space; references
// between copied pages are preserved and references to pages not copied
// become null. The returned pages belong to d but are not yet placed; use
// AddPage or InsertPage.
func (d *Document) CopyPages(ctx context.Context, src *Document, indices []int) ([]*Page, error) {
	for _, i := range indices {
		if i < 0 || i >= len(src.pages) {
			return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i, len(src.pages))
		}
	}
	pageMap := make(map[raw.ObjectRef]raw.ObjectRef, len(indices))
	out := make([]*Page, len(indices))
	for n, i := range indices {
		sp := src.pages[i]
		// The same source page twice yields two independent copies.
		dst := d.alloc()
		if _, dup := pageMap[sp.ref]; !dup {
			pageMap[sp.ref] = dst
		}
		out[n] = &Page{doc: d, ref: dst}
		d.pageRefs[dst] = true
	}

	memo := make(map[raw.ObjectRef]raw.ObjectRef)
	var queue []raw.ObjectRef
	mapRef := func(r raw.ObjectRef) (raw.ObjectRef, bool) {
		if p, ok := pageMap[r]; ok {
			return p, true
		}
		if src.pageRefs[r] {
			return raw.ObjectRef{}, false
		}
		if m, ok := memo[r]; ok {
			return m, true
		}
		if _, ok := src.objects[r]; !ok {
			return raw.ObjectRef{}, false
		}
		m := d.alloc()
		memo[r] = m
		queue = append(queue, r)
		return m, true
	}

	for n, i := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[n].dict = raw.Rewrite(src.pages[i].dict, mapRef).(*raw.DictObj)
		for len(queue) > 0 {
			r := queue[0]
			queue = queue[1:]
			d.objects[memo[r]] = raw.Rewrite(src.objects[r], mapRef)
		}
	}
	d.logger.Debug("pages copied",
		observability.Int("pages", len(indices)),
		observability.Int("objects", len(memo)))
	return out, nil
}
