package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/scanner"
)

var (
	ErrNoXRef    = errors.New("startxref not found")
	ErrBadXRef   = errors.New("malformed cross-reference section")
	ErrXRefCycle = errors.New("cross-reference /Prev cycle")
)

const maxXRefSections = 64

// resolveXRef walks startxref and the /Prev chain. Newer sections win.
// The returned trailer is the newest one with missing keys filled from
// older trailers.
func (l *objectLoader) resolveXRef() (map[int]xrefEntry, *raw.DictObj, error) {
	start, err := findStartXRef(l.data)
	if err != nil {
		return nil, nil, err
	}
	entries := make(map[int]xrefEntry)
	var trailer *raw.DictObj
	visited := make(map[int64]bool)
	queue := []int64{start}
	for len(queue) > 0 {
		off := queue[0]
		queue = queue[1:]
		if visited[off] {
			continue
		}
		if len(visited) >= maxXRefSections {
			return nil, nil, ErrXRefCycle
		}
		visited[off] = true

		section, dict, err := l.readSection(off)
		if err != nil {
			return nil, nil, err
		}
		for num, e := range section {
			if _, seen := entries[num]; !seen {
				entries[num] = e
			}
		}
		if trailer == nil {
			trailer = raw.Clone(dict).(*raw.DictObj)
		} else {
			for _, k := range dict.Keys() {
				if _, ok := trailer.Get(k); !ok {
					v, _ := dict.Get(k)
					trailer.Set(k, v)
				}
			}
		}
		// Hybrid files point at an xref stream holding the compressed entries.
		if stm, ok := dict.Int("XRefStm"); ok {
			streamEntries, _, err := l.readSection(stm)
			if err == nil {
				for num, e := range streamEntries {
					if cur, seen := entries[num]; !seen || cur.kind == entryFree {
						entries[num] = e
					}
				}
			}
		}
		if prev, ok := dict.Int("Prev"); ok {
			queue = append(queue, prev)
		}
	}
	return entries, trailer, nil
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoXRef
	}
	s := scanner.New(data, scanner.Config{})
	if err := s.SeekTo(int64(idx + len("startxref"))); err != nil {
		return 0, err
	}
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return 0, fmt.Errorf("%w: bad startxref value", ErrBadXRef)
	}
	if tok.Int <= 0 || tok.Int >= int64(len(data)) {
		return 0, fmt.Errorf("%w: xref offset out of range: %d", ErrBadXRef, tok.Int)
	}
	return tok.Int, nil
}

// readSection parses either a classic table ("xref" ... "trailer" <<>>) or
// an xref stream object at off.
func (l *objectLoader) readSection(off int64) (map[int]xrefEntry, *raw.DictObj, error) {
	if off < 0 || off >= int64(len(l.data)) {
		return nil, nil, fmt.Errorf("%w: offset %d out of range", ErrBadXRef, off)
	}
	s := scanner.New(l.data, scanner.Config{})
	if err := s.SeekTo(off); err != nil {
		return nil, nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	if tok.IsKeyword("xref") {
		return l.readTable(s)
	}
	obj, err := l.parseIndirectAt(off, -1)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no xref at offset %d", ErrBadXRef, off)
	}
	return l.readXRefStream(st)
}

func (l *objectLoader) readTable(s scanner.Scanner) (map[int]xrefEntry, *raw.DictObj, error) {
	entries := make(map[int]xrefEntry)
	tr := newTokenReader(s)
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
		}
		if tok.IsKeyword("trailer") {
			obj, err := parseObject(tr, l.maxDepth)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: trailer: %v", ErrBadXRef, err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, nil, fmt.Errorf("%w: trailer is %s", ErrBadXRef, obj.Type())
			}
			return entries, dict, nil
		}
		countTok, err := tr.next()
		if err != nil || tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, nil, fmt.Errorf("%w: invalid subsection header", ErrBadXRef)
		}
		first, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err1 := tr.next()
			genTok, err2 := tr.next()
			kindTok, err3 := tr.next()
			if err1 != nil || err2 != nil || err3 != nil || offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber {
				return nil, nil, fmt.Errorf("%w: truncated subsection", ErrBadXRef)
			}
			num := first + i
			if num == 0 && kindTok.Str == "n" && offTok.Int == 0 {
				continue
			}
			switch kindTok.Str {
			case "n":
				entries[num] = xrefEntry{kind: entryInUse, offset: offTok.Int, gen: int(genTok.Int)}
			case "f":
				entries[num] = xrefEntry{kind: entryFree}
			default:
				return nil, nil, fmt.Errorf("%w: entry type %q", ErrBadXRef, kindTok.Str)
			}
		}
	}
}

func (l *objectLoader) readXRefStream(st *raw.StreamObj) (map[int]xrefEntry, *raw.DictObj, error) {
	data, err := l.decodeStream(st)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	wArr, ok := st.Dict.KV["W"].(*raw.ArrayObj)
	if !ok || wArr.Len() < 3 {
		return nil, nil, fmt.Errorf("%w: missing /W", ErrBadXRef)
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		n, ok := raw.Float(wArr.Items[i])
		if !ok || n < 0 || n > 8 {
			return nil, nil, fmt.Errorf("%w: invalid /W", ErrBadXRef)
		}
		w[i] = int(n)
	}
	size, _ := st.Dict.Int("Size")
	index := []int64{0, size}
	if idx, ok := st.Dict.KV["Index"].(*raw.ArrayObj); ok && idx.Len() >= 2 {
		index = index[:0]
		for _, it := range idx.Items {
			n, _ := raw.Float(it)
			index = append(index, int64(n))
		}
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, nil, fmt.Errorf("%w: empty /W", ErrBadXRef)
	}
	entries := make(map[int]xrefEntry)
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+rowLen > len(data) {
				return entries, st.Dict, nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = readField(row[:w[0]])
			}
			f2 := readField(row[w[0] : w[0]+w[1]])
			f3 := readField(row[w[0]+w[1]:])
			num := int(first + j)
			switch typ {
			case 0:
				entries[num] = xrefEntry{kind: entryFree}
			case 1:
				entries[num] = xrefEntry{kind: entryInUse, offset: f2, gen: int(f3)}
			case 2:
				entries[num] = xrefEntry{kind: entryCompressed, stream: int(f2)}
			}
		}
	}
	return entries, st.Dict, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

var objHeader = regexp.MustCompile(`(\d+)[\x00\t\n\f\r ]+(\d+)[\x00\t\n\f\r ]+obj\b`)

// scanObjectHeaders finds every "num gen obj" in the file. Later
// definitions override earlier ones, as in an incremental update.
func scanObjectHeaders(data []byte) map[int]xrefEntry {
	entries := make(map[int]xrefEntry)
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		if m[0] > 0 && !scanner.IsDelimiter(data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		entries[num] = xrefEntry{kind: entryInUse, offset: int64(m[0]), gen: gen}
	}
	return entries
}

// repairTrailer recovers a trailer after a full scan: the last "trailer"
// dictionary in the file, or else the newest xref stream dictionary, with
// /Root located by searching for the catalog when absent.
func (l *objectLoader) repairTrailer() *raw.DictObj {
	trailer := raw.Dict()
	if idx := bytes.LastIndex(l.data, []byte("trailer")); idx >= 0 {
		s := scanner.New(l.data, scanner.Config{})
		if s.SeekTo(int64(idx+len("trailer"))) == nil {
			if obj, err := parseObject(newTokenReader(s), l.maxDepth); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					trailer = d
				}
			}
		}
	}
	nums := make([]int, 0, len(l.entries))
	for num := range l.entries {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	var catalog, info int
	for _, num := range nums {
		obj, err := l.load(num)
		if err != nil {
			continue
		}
		var dict *raw.DictObj
		switch v := obj.(type) {
		case *raw.DictObj:
			dict = v
		case *raw.StreamObj:
			dict = v.Dict
			if t, _ := dict.Name("Type"); t == "XRef" {
				if r, ok := dict.KV["Root"].(raw.RefObj); ok {
					catalog = r.R.Num
				}
				if r, ok := dict.KV["Info"].(raw.RefObj); ok {
					info = r.R.Num
				}
			}
			continue
		}
		if t, _ := dict.Name("Type"); t == "Catalog" {
			catalog = num
		}
	}
	if _, ok := trailer.KV["Root"].(raw.RefObj); !ok || !l.isCatalog(trailer) {
		if catalog > 0 {
			trailer.Set("Root", raw.Ref(catalog, l.entries[catalog].gen))
		}
	}
	if _, ok := trailer.Get("Info"); !ok && info > 0 {
		trailer.Set("Info", raw.Ref(info, 0))
	}
	return trailer
}

func (l *objectLoader) isCatalog(trailer *raw.DictObj) bool {
	root, ok := trailer.KV["Root"].(raw.RefObj)
	if !ok {
		return false
	}
	obj, err := l.load(root.R.Num)
	if err != nil {
		return false
	}
	_, ok = obj.(*raw.DictObj)
	return ok
}

// expandObjectStreams adds entries for objects held in object streams that
// a header scan cannot see.
func (l *objectLoader) expandObjectStreams() {
	nums := make([]int, 0, len(l.entries))
	for num, e := range l.entries {
		if e.kind == entryInUse {
			nums = append(nums, num)
		}
	}
	sort.Ints(nums)
	for _, num := range nums {
		obj, err := l.load(num)
		if err != nil {
			continue
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		if t, _ := st.Dict.Name("Type"); t != "ObjStm" {
			continue
		}
		stm, err := l.loadObjStm(num)
		if err != nil {
			continue
		}
		for inner := range stm.offsets {
			if _, seen := l.entries[inner]; !seen {
				l.entries[inner] = xrefEntry{kind: entryCompressed, stream: num}
			}
		}
	}
}
