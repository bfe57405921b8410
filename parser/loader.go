package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/scanner"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectMismatch = errors.New("object header mismatch")
	ErrCircular       = errors.New("circular object reference")
)

type entryKind int

const (
	entryFree entryKind = iota
	entryInUse
	entryCompressed
)

type xrefEntry struct {
	kind   entryKind
	offset int64
	gen    int
	stream int // containing object stream for compressed entries
}

type objStm struct {
	data    []byte
	offsets map[int]int64
}

// objectLoader materialises indirect objects on demand from file offsets
// or object streams. Objects are memoised by number.
type objectLoader struct {
	ctx      context.Context
	data     []byte
	entries  map[int]xrefEntry
	cache    map[int]raw.Object
	loading  map[int]bool
	streams  map[int]*objStm
	pipeline *filters.Pipeline
	maxDepth int

	repaired map[int]xrefEntry // lazily built offset index for bad xref entries
}

func newObjectLoader(ctx context.Context, data []byte, entries map[int]xrefEntry, pipeline *filters.Pipeline, maxDepth int) *objectLoader {
	return &objectLoader{
		ctx:      ctx,
		data:     data,
		entries:  entries,
		cache:    make(map[int]raw.Object),
		loading:  make(map[int]bool),
		streams:  make(map[int]*objStm),
		pipeline: pipeline,
		maxDepth: maxDepth,
	}
}

func (l *objectLoader) resolve(o raw.Object) raw.Object {
	ref, ok := o.(raw.RefObj)
	if !ok {
		return o
	}
	obj, err := l.load(ref.R.Num)
	if err != nil {
		return raw.NullObj{}
	}
	return obj
}

func (l *objectLoader) load(num int) (raw.Object, error) {
	if obj, ok := l.cache[num]; ok {
		return obj, nil
	}
	if l.loading[num] {
		return nil, fmt.Errorf("%w: %d", ErrCircular, num)
	}
	if err := l.ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := l.entries[num]
	if !ok || e.kind == entryFree {
		return nil, fmt.Errorf("%w: %d", ErrObjectNotFound, num)
	}
	l.loading[num] = true
	defer delete(l.loading, num)

	var obj raw.Object
	var err error
	switch e.kind {
	case entryCompressed:
		obj, err = l.loadCompressed(num, e.stream)
	default:
		obj, err = l.parseIndirectAt(e.offset, num)
		if err != nil {
			if alt, ok := l.repairIndex()[num]; ok && alt.offset != e.offset {
				obj, err = l.parseIndirectAt(alt.offset, num)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	l.cache[num] = obj
	return obj, nil
}

func (l *objectLoader) repairIndex() map[int]xrefEntry {
	if l.repaired == nil {
		l.repaired = scanObjectHeaders(l.data)
	}
	return l.repaired
}

// parseIndirectAt parses "num gen obj ... endobj" at off. want < 0 skips the
// object number check.
func (l *objectLoader) parseIndirectAt(off int64, want int) (raw.Object, error) {
	if off < 0 || off >= int64(len(l.data)) {
		return nil, fmt.Errorf("offset %d out of range", off)
	}
	s := scanner.New(l.data, scanner.Config{})
	if err := s.SeekTo(off); err != nil {
		return nil, err
	}
	tr := newTokenReader(s)
	numTok, err := tr.next()
	if err != nil {
		return nil, err
	}
	genTok, err := tr.next()
	if err != nil {
		return nil, err
	}
	objTok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if numTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || !objTok.IsKeyword("obj") {
		return nil, fmt.Errorf("%w at offset %d", ErrObjectMismatch, off)
	}
	if want >= 0 && int(numTok.Int) != want {
		return nil, fmt.Errorf("%w: found %d at offset %d", ErrObjectMismatch, numTok.Int, off)
	}
	obj, err := parseObject(tr, l.maxDepth)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return obj, nil
	}
	next, err := tr.next()
	if err != nil || !next.IsKeyword("stream") {
		return dict, nil
	}
	data := l.streamData(dict, next.Pos+int64(len("stream")))
	return raw.NewStream(dict, data), nil
}

var endstream = []byte("endstream")

// streamData returns the raw stream bytes, trusting /Length only when it
// lands on the endstream keyword.
func (l *objectLoader) streamData(dict *raw.DictObj, pos int64) []byte {
	data := l.data
	if pos < int64(len(data)) && data[pos] == '\r' {
		pos++
	}
	if pos < int64(len(data)) && data[pos] == '\n' {
		pos++
	}
	if lv, ok := dict.Get("Length"); ok {
		if n, ok := l.resolve(lv).(raw.NumberObj); ok {
			end := pos + n.Int()
			if n.Int() >= 0 && end <= int64(len(data)) {
				rest := bytes.TrimLeft(data[end:], "\x00\t\n\f\r ")
				if bytes.HasPrefix(rest, endstream) {
					return data[pos:end]
				}
			}
		}
	}
	idx := bytes.Index(data[pos:], endstream)
	if idx < 0 {
		return data[pos:]
	}
	end := pos + int64(idx)
	if end > pos && data[end-1] == '\n' {
		end--
	}
	if end > pos && data[end-1] == '\r' {
		end--
	}
	return data[pos:end]
}

func (l *objectLoader) decodeStream(st *raw.StreamObj) ([]byte, error) {
	names, params := filters.StreamFilters(st.Dict, l.resolve)
	return l.pipeline.Decode(l.ctx, st.Data, names, params)
}

func (l *objectLoader) loadObjStm(num int) (*objStm, error) {
	if stm, ok := l.streams[num]; ok {
		return stm, nil
	}
	obj, err := l.load(num)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object stream %d is %s", num, obj.Type())
	}
	stm, err := l.parseObjStm(st)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", num, err)
	}
	l.streams[num] = stm
	return stm, nil
}

func (l *objectLoader) parseObjStm(st *raw.StreamObj) (*objStm, error) {
	data, err := l.decodeStream(st)
	if err != nil {
		return nil, err
	}
	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	if first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("invalid /First %d", first)
	}
	s := scanner.New(data[:first], scanner.Config{})
	offsets := make(map[int]int64, n)
	for i := int64(0); i < n; i++ {
		numTok, err := s.Next()
		if err != nil {
			break
		}
		offTok, err := s.Next()
		if err != nil {
			break
		}
		if numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			break
		}
		if _, dup := offsets[int(numTok.Int)]; !dup {
			offsets[int(numTok.Int)] = first + offTok.Int
		}
	}
	return &objStm{data: data, offsets: offsets}, nil
}

func (l *objectLoader) loadCompressed(num, stream int) (raw.Object, error) {
	stm, err := l.loadObjStm(stream)
	if err != nil {
		return nil, err
	}
	return parseInObjStm(stm, num, l.maxDepth)
}

func parseInObjStm(stm *objStm, num, maxDepth int) (raw.Object, error) {
	off, ok := stm.offsets[num]
	if !ok {
		return nil, fmt.Errorf("%w: %d not in object stream", ErrObjectNotFound, num)
	}
	s := scanner.New(stm.data, scanner.Config{})
	if err := s.SeekTo(off); err != nil {
		return nil, err
	}
	return parseObject(newTokenReader(s), maxDepth)
}
