package writer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/parser"
)

func sampleDoc() *raw.Document {
	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.Ref(2, 0))

	pages := raw.Dict()
	pages.Set("Type", raw.Name("Pages"))
	pages.Set("Kids", raw.NewArray(raw.Ref(3, 0)))
	pages.Set("Count", raw.NumberInt(1))

	page := raw.Dict()
	page.Set("Type", raw.Name("Page"))
	page.Set("Parent", raw.Ref(2, 0))
	page.Set("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberFloat(595.28), raw.NumberFloat(841.89)))
	page.Set("Contents", raw.Ref(4, 0))

	content := raw.NewStream(raw.Dict(), []byte(strings.Repeat("0 0 m 10 10 l S\n", 20)))

	info := raw.Dict()
	info.Set("Title", raw.Str([]byte("Round (trip)")))

	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(1, 0))
	trailer.Set("Info", raw.Ref(5, 0))
	return &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1}: catalog,
			{Num: 2}: pages,
			{Num: 3}: page,
			{Num: 4}: content,
			{Num: 5}: info,
		},
		Trailer: trailer,
	}
}

func writeAndParse(t *testing.T, doc *raw.Document, cfg Config) ([]byte, *raw.Document) {
	t.Helper()
	var buf bytes.Buffer
	if err := New().Write(context.Background(), doc, &buf, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse written file: %v\n%s", err, buf.Bytes())
	}
	return buf.Bytes(), out
}

func TestWriterClassicRoundTrip(t *testing.T) {
	data, out := writeAndParse(t, sampleDoc(), Config{})
	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n")) {
		t.Fatalf("missing header: %q", data[:16])
	}
	if !bytes.Contains(data, []byte("\nxref\n0 6\n")) {
		t.Fatalf("expected classic xref table")
	}
	info, ok := out.Resolve(out.Trailer.KV["Info"]).(*raw.DictObj)
	if !ok {
		t.Fatalf("info missing after round trip")
	}
	if title, _ := info.Get("Title"); string(title.(raw.StringObj).Bytes) != "Round (trip)" {
		t.Fatalf("title mismatch: %v", title)
	}
	st, ok := out.Objects[raw.ObjectRef{Num: 4}].(*raw.StreamObj)
	if !ok || !bytes.HasPrefix(st.Data, []byte("0 0 m")) {
		t.Fatalf("content stream not preserved: %#v", out.Objects[raw.ObjectRef{Num: 4}])
	}
	if _, ok := out.Trailer.Get("ID"); !ok {
		t.Fatalf("trailer /ID missing")
	}
}

func TestWriterCompactRoundTrip(t *testing.T) {
	doc := sampleDoc()
	classic, _ := writeAndParse(t, doc, Config{})
	compact, out := writeAndParse(t, doc, Config{ObjectStreams: true, CompressStreams: true})
	if len(compact) >= len(classic) {
		t.Fatalf("compact output %d not smaller than classic %d", len(compact), len(classic))
	}
	if bytes.Contains(compact, []byte("\nxref\n")) {
		t.Fatalf("compact output should use an xref stream")
	}
	page, ok := out.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj)
	if !ok {
		t.Fatalf("page not recovered from object stream")
	}
	if typ, _ := page.Name("Type"); typ != "Page" {
		t.Fatalf("page type %q", typ)
	}
	st := out.Objects[raw.ObjectRef{Num: 4}].(*raw.StreamObj)
	if f, _ := st.Dict.Name("Filter"); f != "FlateDecode" {
		t.Fatalf("content stream not compressed")
	}
}

func TestWriterRequiresRoot(t *testing.T) {
	doc := &raw.Document{Objects: map[raw.ObjectRef]raw.Object{}, Trailer: raw.Dict()}
	if err := New().Write(context.Background(), doc, &bytes.Buffer{}, Config{}); err == nil {
		t.Fatalf("expected error without /Root")
	}
}

func TestSerializeEscapes(t *testing.T) {
	cases := []struct {
		obj  raw.Object
		want string
	}{
		{raw.Name("A B#"), "/A#20B#23"},
		{raw.Str([]byte("a(b)\\")), `(a\(b\)\\)`},
		{raw.HexStr([]byte{0xde, 0xad}), "<DEAD>"},
		{raw.NumberFloat(0.1 + 0.2), "0.3"},
		{raw.NumberFloat(-0.0000001), "0"},
		{raw.NewArray(raw.Ref(3, 0), raw.NullObj{}, raw.Bool(true)), "[3 0 R null true]"},
	}
	for _, tc := range cases {
		if got := string(Serialize(tc.obj)); got != tc.want {
			t.Fatalf("Serialize(%#v) = %q want %q", tc.obj, got, tc.want)
		}
	}
}
