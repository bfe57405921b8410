package optimize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/wudi/pdftools/ir/raw"
)

// hashObject digests obj with references rewritten through canon, so two
// objects pointing at merged duplicates hash the same.
func hashObject(obj raw.Object, canon func(raw.ObjectRef) raw.ObjectRef) string {
	h := sha256.New()
	writeHash(h, obj, canon)
	return hex.EncodeToString(h.Sum(nil))
}

func writeHash(h hash.Hash, obj raw.Object, canon func(raw.ObjectRef) raw.ObjectRef) {
	if obj == nil {
		fmt.Fprint(h, "nil")
		return
	}
	fmt.Fprint(h, obj.Type(), ":")
	switch t := obj.(type) {
	case raw.NameObj:
		fmt.Fprint(h, t.Val)
	case raw.NumberObj:
		if t.IsInt {
			fmt.Fprint(h, "i", t.I)
		} else {
			fmt.Fprint(h, "f", t.F)
		}
	case raw.BoolObj:
		fmt.Fprint(h, t.V)
	case raw.StringObj:
		fmt.Fprintf(h, "%d:%t:", len(t.Bytes), t.Hex)
		h.Write(t.Bytes)
	case raw.RefObj:
		r := canon(t.R)
		fmt.Fprintf(h, "%d %d R", r.Num, r.Gen)
	case *raw.ArrayObj:
		fmt.Fprint(h, "[")
		for _, v := range t.Items {
			writeHash(h, v, canon)
			fmt.Fprint(h, ",")
		}
		fmt.Fprint(h, "]")
	case *raw.DictObj:
		keys := t.Keys()
		sort.Strings(keys)
		fmt.Fprint(h, "<<")
		for _, k := range keys {
			fmt.Fprint(h, "/", k, " ")
			writeHash(h, t.KV[k], canon)
		}
		fmt.Fprint(h, ">>")
	case *raw.StreamObj:
		writeHash(h, t.Dict, canon)
		fmt.Fprintf(h, "%d:", len(t.Data))
		h.Write(t.Data)
	}
}
