package pages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MarshalJSON writes "all", [n, ...] or [{"start":s,"end":e}, ...].
func (s Selector) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindNumbers:
		return json.Marshal(s.PageNumbers())
	case KindRanges:
		return json.Marshal(s.RangeList())
	}
	return []byte(`"all"`), nil
}

// UnmarshalJSON accepts null or "all", a single page number, a list of
// page numbers, or a list of ranges.
func (s *Selector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = All()
		return nil
	}
	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if strings.EqualFold(strings.TrimSpace(str), "all") {
			*s = All()
			return nil
		}
		return fmt.Errorf("%w: %q", ErrInvalidSelector, str)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
		}
		if len(items) > 0 && bytes.HasPrefix(bytes.TrimSpace(items[0]), []byte("{")) {
			var ranges []Range
			if err := json.Unmarshal(data, &ranges); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
			}
			*s = Ranges(ranges...)
			return nil
		}
		var nums []int
		if err := json.Unmarshal(data, &nums); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSelector, err)
		}
		*s = Numbers(nums...)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSelector, data)
	}
	*s = Numbers(n)
	return nil
}
