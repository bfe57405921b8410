// Package pages turns user page selectors into bounds-checked zero-based
// page indices.
package pages

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidSelector = errors.New("invalid page selector")
	ErrNoValidPages    = errors.New("no valid pages selected")
)

// Kind distinguishes the Selector variants.
type Kind int

const (
	KindAll Kind = iota
	KindNumbers
	KindRanges
)

func (k Kind) String() string {
	switch k {
	case KindNumbers:
		return "numbers"
	case KindRanges:
		return "ranges"
	default:
		return "all"
	}
}

// Range is a 1-based inclusive page range.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// Selector picks pages: every page, a list of 1-based page numbers, or a
// list of ranges. The zero value selects every page.
type Selector struct {
	kind    Kind
	numbers []int
	ranges  []Range
}

// All selects every page.
func All() Selector { return Selector{} }

// Numbers selects 1-based page numbers. Order and duplicates do not matter.
func Numbers(n ...int) Selector {
	return Selector{kind: KindNumbers, numbers: append([]int(nil), n...)}
}

// Ranges selects 1-based inclusive ranges.
func Ranges(r ...Range) Selector {
	return Selector{kind: KindRanges, ranges: append([]Range(nil), r...)}
}

func (s Selector) Kind() Kind { return s.kind }

// IsEmpty reports whether an explicit selector lists nothing.
func (s Selector) IsEmpty() bool {
	switch s.kind {
	case KindNumbers:
		return len(s.numbers) == 0
	case KindRanges:
		return len(s.ranges) == 0
	}
	return false
}

// PageNumbers returns a copy of the listed numbers.
func (s Selector) PageNumbers() []int { return append([]int(nil), s.numbers...) }

// RangeList returns a copy of the listed ranges.
func (s Selector) RangeList() []Range { return append([]Range(nil), s.ranges...) }

// RangeError reports a range outside the document.
type RangeError struct {
	Range     Range
	PageCount int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range: %s. PDF has %d pages", e.Range, e.PageCount)
}

func (e *RangeError) Unwrap() error { return ErrInvalidSelector }

func checkRange(r Range, pageCount int) error {
	if r.Start < 1 || r.End > pageCount || r.Start > r.End {
		return &RangeError{Range: r, PageCount: pageCount}
	}
	return nil
}

// Resolve returns ascending unique zero-based indices. Page numbers
// outside the document are dropped; ranges outside it are an error.
func Resolve(sel Selector, pageCount int) ([]int, error) {
	switch sel.kind {
	case KindNumbers:
		seen := make(map[int]bool, len(sel.numbers))
		out := make([]int, 0, len(sel.numbers))
		for _, n := range sel.numbers {
			if n < 1 || n > pageCount || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n-1)
		}
		sort.Ints(out)
		return out, nil
	case KindRanges:
		groups, err := ValidateRanges(sel.ranges, pageCount)
		if err != nil {
			return nil, err
		}
		seen := make(map[int]bool)
		var out []int
		for _, g := range groups {
			for _, i := range g {
				if !seen[i] {
					seen[i] = true
					out = append(out, i)
				}
			}
		}
		sort.Ints(out)
		return out, nil
	default:
		out := make([]int, pageCount)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
}

// ResolveRequired is Resolve but fails with ErrNoValidPages when nothing
// survives.
func ResolveRequired(sel Selector, pageCount int) ([]int, error) {
	out, err := Resolve(sel, pageCount)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: PDF has %d pages", ErrNoValidPages, pageCount)
	}
	return out, nil
}

// ValidateRanges checks every range and returns each one's indices, in
// request order. One bad range fails the whole call.
func ValidateRanges(ranges []Range, pageCount int) ([][]int, error) {
	out := make([][]int, 0, len(ranges))
	for _, r := range ranges {
		if err := checkRange(r, pageCount); err != nil {
			return nil, err
		}
		idx := make([]int, 0, r.End-r.Start+1)
		for p := r.Start; p <= r.End; p++ {
			idx = append(idx, p-1)
		}
		out = append(out, idx)
	}
	return out, nil
}

// EachPage returns one single-page range per page.
func EachPage(pageCount int) []Range {
	out := make([]Range, pageCount)
	for i := range out {
		out[i] = Range{Start: i + 1, End: i + 1}
	}
	return out
}

// Descending returns a copy of indices sorted high to low, the order in
// which pages can be removed without shifting the ones still to go.
func Descending(indices []int) []int {
	out := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// PageNumbersOf converts zero-based indices to 1-based page numbers.
func PageNumbersOf(indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = idx + 1
	}
	return out
}
