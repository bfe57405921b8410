// Package optimize finds redundant indirect objects ahead of a compact
// save.
package optimize

import (
	"sort"

	"github.com/wudi/pdftools/ir/raw"
)

// Duplicates maps every indirect object whose content equals that of a
// lower-numbered object to that object. Objects for which keep returns true
// are never merged. Merging repeats until stable, so containers that differ
// only in which duplicate they reference collapse as well.
func Duplicates(objects map[raw.ObjectRef]raw.Object, keep func(raw.ObjectRef) bool) map[raw.ObjectRef]raw.ObjectRef {
	refs := make([]raw.ObjectRef, 0, len(objects))
	for ref := range objects {
		if keep != nil && keep(ref) {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})

	alias := make(map[raw.ObjectRef]raw.ObjectRef)
	canon := func(r raw.ObjectRef) raw.ObjectRef {
		if a, ok := alias[r]; ok {
			return a
		}
		return r
	}
	for changed := true; changed; {
		changed = false
		seen := make(map[string]raw.ObjectRef)
		for _, ref := range refs {
			if _, merged := alias[ref]; merged {
				continue
			}
			h := hashObject(objects[ref], canon)
			if original, ok := seen[h]; ok {
				alias[ref] = original
				changed = true
				continue
			}
			seen[h] = ref
		}
	}
	return alias
}
