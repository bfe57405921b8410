package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wudi/pdftools/ir/raw"
)

// pdfBuilder assembles small files with correct offsets.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{offsets: map[int]int{}}
	b.buf.WriteString("%PDF-1.7\n")
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// xref writes a classic table covering nums and returns its offset.
func (b *pdfBuilder) xref(trailer string, nums ...int) int {
	off := b.buf.Len()
	b.buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	for _, n := range nums {
		fmt.Fprintf(&b.buf, "%d 1\n%010d 00000 n \n", n, b.offsets[n])
	}
	fmt.Fprintf(&b.buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, off)
	return off
}

func buildClassicPDF() []byte {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.xref("<< /Size 3 /Root 1 0 R >>", 1, 2)
	return b.buf.Bytes()
}

func buildIncrementalPDF() []byte {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	first := b.xref("<< /Size 3 /Root 1 0 R >>", 1, 2)
	b.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>")
	b.xref(fmt.Sprintf("<< /Size 4 /Root 1 0 R /Prev %d >>", first), 2, 3)
	return b.buf.Bytes()
}

func TestDocumentParserParsesClassicXRef(t *testing.T) {
	p := NewDocumentParser(Config{})
	doc, err := p.Parse(context.Background(), bytes.NewReader(buildClassicPDF()))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Trailer == nil {
		t.Fatalf("trailer not captured")
	}
	if got := doc.Version; got != "1.7" {
		t.Fatalf("expected version 1.7, got %q", got)
	}
	if len(doc.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(doc.Objects))
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 1, Gen: 0}]; !ok {
		t.Fatalf("catalog missing")
	}
}

func TestDocumentParserFollowsPrevChain(t *testing.T) {
	p := NewDocumentParser(Config{})
	doc, err := p.Parse(context.Background(), bytes.NewReader(buildIncrementalPDF()))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 3, Gen: 0}]; !ok {
		t.Fatalf("incremental object missing")
	}
	obj2, ok := doc.Objects[raw.ObjectRef{Num: 2, Gen: 0}].(*raw.DictObj)
	if !ok {
		t.Fatalf("expected dict for object 2, got %T", doc.Objects[raw.ObjectRef{Num: 2, Gen: 0}])
	}
	if count, _ := obj2.Int("Count"); count != 1 {
		t.Fatalf("expected Count 1 after update, got %d", count)
	}
	if _, ok := doc.Trailer.Get("Prev"); !ok {
		t.Fatalf("Prev not propagated on final trailer")
	}
}

func TestDocumentParserRepairsBrokenXRef(t *testing.T) {
	data := buildIncrementalPDF()
	data = bytes.Replace(data, []byte("startxref\n"), []byte("startxref\n9"), -1)
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("repair parse failed: %v", err)
	}
	pages, ok := doc.Objects[raw.ObjectRef{Num: 2}].(*raw.DictObj)
	if !ok {
		t.Fatalf("pages missing after repair")
	}
	if count, _ := pages.Int("Count"); count != 1 {
		t.Fatalf("repair should keep the newest object 2, got Count %d", count)
	}
	if _, ok := doc.Trailer.KV["Root"].(raw.RefObj); !ok {
		t.Fatalf("repaired trailer has no Root")
	}
}

func TestDocumentParserRepairsMissingTrailer(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(b.buf.Bytes()))
	if err != nil {
		t.Fatalf("parse without xref: %v", err)
	}
	root, ok := doc.Trailer.KV["Root"].(raw.RefObj)
	if !ok || root.R.Num != 1 {
		t.Fatalf("catalog not located: %#v", doc.Trailer.KV["Root"])
	}
}

func TestDocumentParserStreamLength(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	// Wrong direct length, then an indirect one.
	b.obj(3, "<< /Length 99 >>\nstream\nBT ET\nendstream")
	b.obj(4, "<< /Length 5 0 R >>\nstream\r\nq Q\nendstream")
	b.obj(5, "3")
	b.xref("<< /Size 6 /Root 1 0 R >>", 1, 2, 3, 4, 5)
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(b.buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if st := doc.Objects[raw.ObjectRef{Num: 3}].(*raw.StreamObj); string(st.Data) != "BT ET" {
		t.Fatalf("fallback length data %q", st.Data)
	}
	if st := doc.Objects[raw.ObjectRef{Num: 4}].(*raw.StreamObj); string(st.Data) != "q Q" {
		t.Fatalf("indirect length data %q", st.Data)
	}
}

func TestDocumentParserEncryptedFlag(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.obj(3, "<< /Filter /Standard /V 2 /R 3 >>")
	b.xref("<< /Size 4 /Root 1 0 R /Encrypt 3 0 R >>", 1, 2, 3)
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(b.buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !doc.Encrypted {
		t.Fatalf("expected Encrypted flag")
	}
}

func TestDocumentParserRejectsNonPDF(t *testing.T) {
	_, err := NewDocumentParser(Config{}).Parse(context.Background(), strings.NewReader("hello world"))
	if !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
	_, err = NewDocumentParser(Config{}).Parse(context.Background(), strings.NewReader("%PDF-1.4\nnothing here"))
	if err == nil {
		t.Fatalf("expected error for header-only file")
	}
}

func TestParseObjectReferencesAndNesting(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R /Arr [1 2 R 3 0 R [4]] >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.xref("<< /Size 3 /Root 1 0 R >>", 1, 2)
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(b.buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cat := doc.Objects[raw.ObjectRef{Num: 1}].(*raw.DictObj)
	arr := cat.KV["Arr"].(*raw.ArrayObj)
	if arr.Len() != 3 {
		t.Fatalf("expected 3 items, got %d: %#v", arr.Len(), arr.Items)
	}
	if ref, ok := arr.Items[0].(raw.RefObj); !ok || ref.R.Num != 1 || ref.R.Gen != 2 {
		t.Fatalf("expected 1 2 R, got %#v", arr.Items[0])
	}

	deep := strings.Repeat("[", 10) + strings.Repeat("]", 10)
	b2 := newPDFBuilder()
	b2.obj(1, "<< /Type /Catalog /Pages 2 0 R /Deep "+deep+" >>")
	b2.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b2.xref("<< /Size 3 /Root 1 0 R >>", 1, 2)
	if _, err := NewDocumentParser(Config{MaxObjectDepth: 4}).Parse(context.Background(), bytes.NewReader(b2.buf.Bytes())); err == nil {
		t.Fatalf("expected failure when the catalog exceeds the nesting bound")
	}
}
