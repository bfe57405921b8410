package document

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/optimize"
	"github.com/wudi/pdftools/writer"
)

// SaveOptions controls Save.
type SaveOptions struct {
	// Compact packs objects into object streams behind a cross-reference
	// stream and Flate-compresses unfiltered streams.
	Compact bool
	// Deduplicate writes one copy of indirect objects with identical
	// content. Page objects are never merged.
	Deduplicate bool
}

// Save encodes the document. Only objects reachable from the catalog, the
// info dictionary and the current pages are written; they are renumbered
// densely. References to pages no longer in the document become null.
func (d *Document) Save(ctx context.Context, opts SaveOptions) ([]byte, error) {
	start := time.Now()
	out := &raw.Document{Objects: make(map[raw.ObjectRef]raw.Object)}

	next := 1
	take := func() raw.ObjectRef {
		r := raw.ObjectRef{Num: next}
		next++
		return r
	}
	catalogRef := take()
	pagesRef := take()
	var infoRef raw.ObjectRef
	if !d.Info.empty() {
		infoRef = take()
	}

	pageNums := make(map[raw.ObjectRef]raw.ObjectRef, len(d.pages))
	newPageRefs := make([]raw.ObjectRef, len(d.pages))
	for i, p := range d.pages {
		newPageRefs[i] = take()
		if _, dup := pageNums[p.ref]; !dup {
			pageNums[p.ref] = newPageRefs[i]
		}
	}

	var alias map[raw.ObjectRef]raw.ObjectRef
	if opts.Deduplicate {
		alias = optimize.Duplicates(d.objects, func(r raw.ObjectRef) bool { return d.pageRefs[r] })
	}

	memo := make(map[raw.ObjectRef]raw.ObjectRef)
	var queue []raw.ObjectRef
	mapRef := func(r raw.ObjectRef) (raw.ObjectRef, bool) {
		if n, ok := pageNums[r]; ok {
			return n, true
		}
		if d.pageRefs[r] {
			return raw.ObjectRef{}, false
		}
		if a, ok := alias[r]; ok {
			r = a
		}
		if n, ok := memo[r]; ok {
			return n, true
		}
		if _, ok := d.objects[r]; !ok {
			return raw.ObjectRef{}, false
		}
		n := take()
		memo[r] = n
		queue = append(queue, r)
		return n, true
	}
	drain := func() {
		for len(queue) > 0 {
			r := queue[0]
			queue = queue[1:]
			out.Objects[memo[r]] = raw.Rewrite(d.objects[r], mapRef)
		}
	}

	catalog := raw.Rewrite(d.catalog, mapRef).(*raw.DictObj)
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.RefObj{R: pagesRef})
	out.Objects[catalogRef] = catalog
	drain()

	kids := raw.NewArray()
	for i, p := range d.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dict := raw.Rewrite(p.dict, mapRef).(*raw.DictObj)
		dict.Set("Type", raw.Name("Page"))
		dict.Set("Parent", raw.RefObj{R: pagesRef})
		out.Objects[newPageRefs[i]] = dict
		kids.Append(raw.RefObj{R: newPageRefs[i]})
		drain()
	}
	root := raw.Dict()
	root.Set("Type", raw.Name("Pages"))
	root.Set("Kids", kids)
	root.Set("Count", raw.NumberInt(int64(len(d.pages))))
	out.Objects[pagesRef] = root

	out.Trailer = raw.Dict()
	out.Trailer.Set("Root", raw.RefObj{R: catalogRef})
	if infoRef.Num != 0 {
		out.Objects[infoRef] = d.Info.dict()
		out.Trailer.Set("Info", raw.RefObj{R: infoRef})
	}

	cfg := writer.Config{Version: d.version}
	if opts.Compact {
		cfg.ObjectStreams = true
		cfg.CompressStreams = true
		cfg.Version = atLeast(d.version, "1.5")
	}
	var buf bytes.Buffer
	if err := writer.New().Write(ctx, out, &buf, cfg); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	d.logger.Debug("document saved",
		observability.Int("pages", len(d.pages)),
		observability.Int("objects", len(out.Objects)),
		observability.Int("bytes", buf.Len()),
		observability.Bool("compact", opts.Compact),
		observability.Int("merged", len(alias)),
		observability.Duration("elapsed", time.Since(start)))
	return buf.Bytes(), nil
}

// atLeast returns the higher of two "major.minor" version strings.
func atLeast(version, min string) string {
	v, err := strconv.ParseFloat(version, 64)
	if err != nil {
		return min
	}
	m, _ := strconv.ParseFloat(min, 64)
	if v < m {
		return min
	}
	return version
}
