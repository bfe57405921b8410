package pages

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestResolveAllYieldsEveryIndex(t *testing.T) {
	for p := 1; p <= 20; p++ {
		got, err := Resolve(All(), p)
		if err != nil {
			t.Fatalf("p=%d: %v", p, err)
		}
		if len(got) != p {
			t.Fatalf("p=%d: got %d indices", p, len(got))
		}
		for i, idx := range got {
			if idx != i {
				t.Fatalf("p=%d: index %d is %d", p, i, idx)
			}
		}
	}
	var zero Selector
	if got, _ := Resolve(zero, 3); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("zero selector should select all, got %v", got)
	}
}

func TestResolveNumbers(t *testing.T) {
	cases := []struct {
		name string
		in   []int
		want []int
	}{
		{"ordered", []int{1, 3}, []int{0, 2}},
		{"unordered with duplicates", []int{5, 2, 5, 1}, []int{0, 1, 4}},
		{"out of range dropped", []int{0, 99, 2, -1}, []int{1}},
		{"all invalid", []int{99}, []int{}},
	}
	for _, tc := range cases {
		got, err := Resolve(Numbers(tc.in...), 5)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveRequired(t *testing.T) {
	if _, err := ResolveRequired(Numbers(99), 5); !errors.Is(err, ErrNoValidPages) {
		t.Fatalf("expected ErrNoValidPages, got %v", err)
	}
	got, err := ResolveRequired(Numbers(99, 2), 5)
	if err != nil || !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestRangesValidation(t *testing.T) {
	bad := []Range{{0, 1}, {2, 1}, {4, 6}}
	for _, r := range bad {
		_, err := Resolve(Ranges(Range{1, 1}, r), 5)
		var rerr *RangeError
		if !errors.As(err, &rerr) {
			t.Fatalf("%v: expected RangeError, got %v", r, err)
		}
		if rerr.Range != r || rerr.PageCount != 5 {
			t.Fatalf("%v: error names %v of %d", r, rerr.Range, rerr.PageCount)
		}
		if !errors.Is(err, ErrInvalidSelector) {
			t.Fatalf("%v: should wrap ErrInvalidSelector", r)
		}
	}

	groups, err := ValidateRanges([]Range{{3, 4}, {1, 2}}, 5)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !reflect.DeepEqual(groups, [][]int{{2, 3}, {0, 1}}) {
		t.Fatalf("groups keep request order: %v", groups)
	}
	flat, _ := Resolve(Ranges(Range{3, 4}, Range{1, 3}), 5)
	if !reflect.DeepEqual(flat, []int{0, 1, 2, 3}) {
		t.Fatalf("flattened ranges: %v", flat)
	}
}

func TestDescendingAndEachPage(t *testing.T) {
	in := []int{0, 4, 2}
	if got := Descending(in); !reflect.DeepEqual(got, []int{4, 2, 0}) {
		t.Fatalf("descending: %v", got)
	}
	if !reflect.DeepEqual(in, []int{0, 4, 2}) {
		t.Fatalf("input modified: %v", in)
	}
	if got := EachPage(3); !reflect.DeepEqual(got, []Range{{1, 1}, {2, 2}, {3, 3}}) {
		t.Fatalf("each page: %v", got)
	}
	if got := PageNumbersOf([]int{0, 2}); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("page numbers: %v", got)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	sel := Numbers(4, 1, 3, 1)
	first, _ := Resolve(sel, 4)
	for i := 0; i < 10; i++ {
		again, _ := Resolve(sel, 4)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestSelectorJSON(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
	}{
		{`"all"`, KindAll},
		{`"ALL"`, KindAll},
		{`null`, KindAll},
		{`[1, 3]`, KindNumbers},
		{`2`, KindNumbers},
		{`[{"start": 1, "end": 2}]`, KindRanges},
		{`[]`, KindNumbers},
	}
	for _, tc := range cases {
		var s Selector
		if err := json.Unmarshal([]byte(tc.in), &s); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if s.Kind() != tc.kind {
			t.Fatalf("%s: kind %v want %v", tc.in, s.Kind(), tc.kind)
		}
	}

	var s Selector
	if err := json.Unmarshal([]byte(`"odd"`), &s); !errors.Is(err, ErrInvalidSelector) {
		t.Fatalf("expected ErrInvalidSelector, got %v", err)
	}
	if err := json.Unmarshal([]byte(`[true]`), &s); !errors.Is(err, ErrInvalidSelector) {
		t.Fatalf("expected ErrInvalidSelector, got %v", err)
	}

	out, err := json.Marshal(Ranges(Range{1, 2}))
	if err != nil || string(out) != `[{"start":1,"end":2}]` {
		t.Fatalf("marshal ranges: %s %v", out, err)
	}
	out, _ = json.Marshal(All())
	if string(out) != `"all"` {
		t.Fatalf("marshal all: %s", out)
	}
}
