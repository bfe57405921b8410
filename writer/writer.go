package writer

import (
	"bytes"
	"compress/flate"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
)

// Config controls serialization of a raw document.
type Config struct {
	Version          string // header version, default "1.7"
	XRefStreams      bool   // cross-reference stream instead of a classic table
	ObjectStreams    bool   // pack non-stream objects into object streams; implies XRefStreams
	CompressStreams  bool   // Flate-encode unfiltered streams other than images
	Compression      int    // flate level for writer-produced streams
	ObjectsPerStream int
}

type Writer interface {
	Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error
}

// New returns the default writer.
func New() Writer { return &impl{} }

type impl struct{}

type located struct {
	ref    raw.ObjectRef
	offset int64
	stream int // containing object stream, 0 when written directly
	index  int
}

func normalize(cfg Config) Config {
	if cfg.Version == "" {
		cfg.Version = "1.7"
	}
	if cfg.ObjectStreams {
		cfg.XRefStreams = true
	}
	if cfg.Compression == 0 {
		cfg.Compression = flate.BestCompression
	}
	if cfg.ObjectsPerStream <= 0 {
		cfg.ObjectsPerStream = 100
	}
	return cfg
}

// Write serializes every object in doc.Objects. The trailer's /Root and
// /Info are carried over; /ID is derived from the written bodies.
func (i *impl) Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error {
	cfg = normalize(cfg)
	if doc.Trailer == nil {
		return fmt.Errorf("write: document has no trailer")
	}
	root, ok := doc.Trailer.Get("Root")
	if !ok {
		return fmt.Errorf("write: trailer has no /Root")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + cfg.Version + "\n%\xE2\xE3\xCF\xD3\n")

	refs := doc.SortedRefs()
	maxNum := 0
	for _, ref := range refs {
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	var direct []raw.ObjectRef
	var packed []raw.ObjectRef
	for _, ref := range refs {
		_, isStream := doc.Objects[ref].(*raw.StreamObj)
		if cfg.ObjectStreams && !isStream && ref.Gen == 0 {
			packed = append(packed, ref)
			continue
		}
		direct = append(direct, ref)
	}

	idHash := sha256.New()
	locs := make(map[int]located, len(refs))
	for _, ref := range direct {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := prepare(doc.Objects[ref], cfg)
		if err != nil {
			return fmt.Errorf("object %d: %w", ref.Num, err)
		}
		locs[ref.Num] = located{ref: ref, offset: int64(buf.Len())}
		body := Serialize(obj)
		idHash.Write(body)
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		buf.Write(body)
		buf.WriteString("\nendobj\n")
	}

	next := maxNum + 1
	for start := 0; start < len(packed); start += cfg.ObjectsPerStream {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + cfg.ObjectsPerStream
		if end > len(packed) {
			end = len(packed)
		}
		chunk := packed[start:end]
		stmNum := next
		next++
		stm, err := buildObjectStream(doc, chunk, cfg.Compression)
		if err != nil {
			return fmt.Errorf("object stream %d: %w", stmNum, err)
		}
		for idx, ref := range chunk {
			locs[ref.Num] = located{ref: ref, stream: stmNum, index: idx}
			idHash.Write(Serialize(doc.Objects[ref]))
		}
		locs[stmNum] = located{ref: raw.ObjectRef{Num: stmNum}, offset: int64(buf.Len())}
		fmt.Fprintf(&buf, "%d 0 obj\n", stmNum)
		buf.Write(Serialize(stm))
		buf.WriteString("\nendobj\n")
	}

	sum := idHash.Sum(nil)
	id := raw.HexStr(sum[:16])
	trailer := raw.Dict()
	trailer.Set("Root", root)
	if info, ok := doc.Trailer.Get("Info"); ok {
		trailer.Set("Info", info)
	}
	trailer.Set("ID", raw.NewArray(id, raw.HexStr(append([]byte(nil), sum[:16]...))))

	if cfg.XRefStreams {
		xrefNum := next
		size := xrefNum + 1
		xrefOffset := int64(buf.Len())
		locs[xrefNum] = located{ref: raw.ObjectRef{Num: xrefNum}, offset: xrefOffset}
		entries := xrefStreamEntries(locs, size)
		data, err := filters.EncodeFlate(entries, cfg.Compression)
		if err != nil {
			return fmt.Errorf("xref stream: %w", err)
		}
		trailer.Set("Type", raw.Name("XRef"))
		trailer.Set("Size", raw.NumberInt(int64(size)))
		trailer.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(2)))
		trailer.Set("Filter", raw.Name("FlateDecode"))
		trailer.Set("Length", raw.NumberInt(int64(len(data))))
		fmt.Fprintf(&buf, "%d 0 obj\n", xrefNum)
		buf.Write(Serialize(raw.NewStream(trailer, data)))
		buf.WriteString("\nendobj\n")
		fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	} else {
		size := maxNum + 1
		xrefOffset := int64(buf.Len())
		buf.WriteString("xref\n")
		fmt.Fprintf(&buf, "0 %d\n", size)
		buf.WriteString("0000000000 65535 f \n")
		for num := 1; num < size; num++ {
			loc, ok := locs[num]
			if !ok {
				buf.WriteString("0000000000 65535 f \n")
				continue
			}
			fmt.Fprintf(&buf, "%010d %05d n \n", loc.offset, loc.ref.Gen)
		}
		trailer.Set("Size", raw.NumberInt(int64(size)))
		buf.WriteString("trailer\n")
		buf.Write(Serialize(trailer))
		fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// prepare returns the object as it should be written. Streams get a copied
// dictionary with an accurate /Length and optional compression.
func prepare(obj raw.Object, cfg Config) (raw.Object, error) {
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return obj, nil
	}
	dict := raw.Clone(st.Dict).(*raw.DictObj)
	data := st.Data
	if cfg.CompressStreams && compressible(dict) {
		enc, err := filters.EncodeFlate(data, cfg.Compression)
		if err != nil {
			return nil, err
		}
		if len(enc) < len(data) {
			data = enc
			dict.Set("Filter", raw.Name("FlateDecode"))
			dict.Delete("DecodeParms")
		}
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

func compressible(dict *raw.DictObj) bool {
	if _, ok := dict.Get("Filter"); ok {
		return false
	}
	if st, _ := dict.Name("Subtype"); st == "Image" {
		return false
	}
	return true
}

func buildObjectStream(doc *raw.Document, chunk []raw.ObjectRef, level int) (*raw.StreamObj, error) {
	var header, body bytes.Buffer
	for i, ref := range chunk {
		if i > 0 {
			header.WriteByte(' ')
			body.WriteByte('\n')
		}
		header.WriteString(strconv.Itoa(ref.Num) + " " + strconv.Itoa(body.Len()))
		body.Write(Serialize(doc.Objects[ref]))
	}
	header.WriteByte('\n')
	first := header.Len()
	header.Write(body.Bytes())
	data, err := filters.EncodeFlate(header.Bytes(), level)
	if err != nil {
		return nil, err
	}
	dict := raw.Dict()
	dict.Set("Type", raw.Name("ObjStm"))
	dict.Set("N", raw.NumberInt(int64(len(chunk))))
	dict.Set("First", raw.NumberInt(int64(first)))
	dict.Set("Filter", raw.Name("FlateDecode"))
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

func xrefStreamEntries(locs map[int]located, size int) []byte {
	out := make([]byte, 0, size*7)
	for num := 0; num < size; num++ {
		loc, ok := locs[num]
		switch {
		case num == 0:
			out = appendXRefStreamEntry(out, 0, 0, 65535)
		case !ok:
			out = appendXRefStreamEntry(out, 0, 0, 0)
		case loc.stream > 0:
			out = appendXRefStreamEntry(out, 2, int64(loc.stream), loc.index)
		default:
			out = appendXRefStreamEntry(out, 1, loc.offset, loc.ref.Gen)
		}
	}
	return out
}

func appendXRefStreamEntry(buf []byte, typ int, field2 int64, field3 int) []byte {
	buf = append(buf, byte(typ))
	offset := uint32(field2)
	buf = append(buf, byte(offset>>24), byte(offset>>16), byte(offset>>8), byte(offset))
	return append(buf, byte(field3>>8), byte(field3))
}
