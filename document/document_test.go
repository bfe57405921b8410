package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wudi/pdftools/ir/raw"
)

func buildFile(objs map[int]string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := map[int]int{}
	max := 0
	for n := 1; n <= len(objs); n++ {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, objs[n])
		max = n
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", max+1)
	for n := 1; n <= max; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

// inheritedFixture has a two-level page tree with attributes on the
// intermediate node.
func inheritedFixture() []byte {
	return buildFile(map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R >>",
		2: "<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 300 400] /Rotate 90 >>",
		3: "<< /Type /Page /Parent 2 0 R /Contents 5 0 R /Resources << /Font << /F1 6 0 R >> >> >>",
		4: "<< /Type /Pages /Parent 2 0 R /Kids [7 0 R] /Count 1 /MediaBox [0 0 100 200] >>",
		5: "<< /Length 8 >>\nstream\nBT ET q \nendstream",
		6: "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		7: "<< /Type /Page /Parent 4 0 R /Rotate -90 /Link 3 0 R >>",
	}, "<< /Size 8 /Root 1 0 R >>")
}

func mustLoad(t *testing.T, data []byte) *Document {
	t.Helper()
	d, err := Load(context.Background(), data, LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func mustSave(t *testing.T, d *Document, opts SaveOptions) []byte {
	t.Helper()
	out, err := d.Save(context.Background(), opts)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return out
}

func TestLoadMaterialisesInheritedAttributes(t *testing.T) {
	d := mustLoad(t, inheritedFixture())
	if d.PageCount() != 2 {
		t.Fatalf("expected 2 pages, got %d", d.PageCount())
	}
	p0, _ := d.Page(0)
	if p0.Width() != 300 || p0.Height() != 400 {
		t.Fatalf("page 1 size %vx%v", p0.Width(), p0.Height())
	}
	if p0.Rotation() != 90 {
		t.Fatalf("page 1 rotation %d", p0.Rotation())
	}
	p1, _ := d.Page(1)
	if p1.Width() != 100 || p1.Height() != 200 {
		t.Fatalf("page 2 size %vx%v", p1.Width(), p1.Height())
	}
	if p1.Rotation() != 270 {
		t.Fatalf("page 2 rotation should normalise -90 to 270, got %d", p1.Rotation())
	}
	if _, ok := p1.Dict().Get("Parent"); ok {
		t.Fatalf("loaded page should not keep /Parent")
	}
}

func TestSaveRoundTripKeepsPagesAndContent(t *testing.T) {
	for _, compact := range []bool{false, true} {
		d := mustLoad(t, inheritedFixture())
		out := mustSave(t, d, SaveOptions{Compact: compact})
		again := mustLoad(t, out)
		if again.PageCount() != 2 {
			t.Fatalf("compact=%v: expected 2 pages, got %d", compact, again.PageCount())
		}
		p0, _ := again.Page(0)
		if p0.Rotation() != 90 || p0.Width() != 300 {
			t.Fatalf("compact=%v: page attributes lost", compact)
		}
		res, ok := again.Resolve(p0.Dict().KV["Resources"]).(*raw.DictObj)
		if !ok {
			t.Fatalf("compact=%v: resources missing", compact)
		}
		fonts, ok := again.Resolve(res.KV["Font"]).(*raw.DictObj)
		if !ok {
			t.Fatalf("compact=%v: font dict missing", compact)
		}
		font, ok := again.Resolve(fonts.KV["F1"]).(*raw.DictObj)
		if !ok {
			t.Fatalf("compact=%v: font object not carried over", compact)
		}
		if name, _ := font.Name("BaseFont"); name != "Helvetica" {
			t.Fatalf("compact=%v: BaseFont %q", compact, name)
		}
		if compact && again.Version() != "1.5" {
			t.Fatalf("compact save should raise version to 1.5, got %s", again.Version())
		}
		if !compact {
			st, ok := again.Resolve(p0.Dict().KV["Contents"]).(*raw.StreamObj)
			if !ok || string(st.Data) != "BT ET q " {
				t.Fatalf("content stream not preserved: %#v", p0.Dict().KV["Contents"])
			}
		}
	}
}

func TestRemovedPageReferencesBecomeNull(t *testing.T) {
	d := mustLoad(t, inheritedFixture())
	if err := d.RemovePage(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	again := mustLoad(t, mustSave(t, d, SaveOptions{}))
	if again.PageCount() != 1 {
		t.Fatalf("expected 1 page, got %d", again.PageCount())
	}
	p, _ := again.Page(0)
	if _, ok := p.Dict().KV["Link"].(raw.NullObj); !ok {
		t.Fatalf("link to removed page should be null, got %#v", p.Dict().KV["Link"])
	}
	if err := d.RemovePage(5); !errors.Is(err, ErrPageRange) {
		t.Fatalf("expected ErrPageRange, got %v", err)
	}
}

func TestCopyPagesAcrossDocuments(t *testing.T) {
	src := mustLoad(t, inheritedFixture())
	dst := New()
	copied, err := dst.CopyPages(context.Background(), src, []int{1, 0})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	for _, p := range copied {
		if err := dst.AddPage(p); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	// The copied link targets a page that was also copied.
	link, ok := copied[0].Dict().KV["Link"].(raw.RefObj)
	if !ok || link.R != copied[1].ref {
		t.Fatalf("link should point at the copied page, got %#v", copied[0].Dict().KV["Link"])
	}
	again := mustLoad(t, mustSave(t, dst, SaveOptions{}))
	if again.PageCount() != 2 {
		t.Fatalf("expected 2 pages, got %d", again.PageCount())
	}
	p0, _ := again.Page(0)
	if p0.Width() != 100 {
		t.Fatalf("page order not kept: width %v", p0.Width())
	}

	// Mutating the copy leaves the source alone.
	copied[1].SetRotation(180)
	orig, _ := src.Page(0)
	if orig.Rotation() != 90 {
		t.Fatalf("source page changed: %d", orig.Rotation())
	}

	if err := New().AddPage(copied[0]); !errors.Is(err, ErrForeignPage) {
		t.Fatalf("expected ErrForeignPage, got %v", err)
	}
	if _, err := dst.CopyPages(context.Background(), src, []int{2}); !errors.Is(err, ErrPageRange) {
		t.Fatalf("expected ErrPageRange, got %v", err)
	}
}

func TestCopySinglePageNullsOtherPages(t *testing.T) {
	src := mustLoad(t, inheritedFixture())
	dst := New()
	copied, err := dst.CopyPages(context.Background(), src, []int{1})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if _, ok := copied[0].Dict().KV["Link"].(raw.NullObj); !ok {
		t.Fatalf("reference to an uncopied page should be null")
	}
}

func TestInfoRoundTrip(t *testing.T) {
	d := New()
	d.NewPage(595.28, 841.89)
	d.Info.Title = "Übersicht"
	d.Info.Author = "日本語"
	now := time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)
	d.Stamp(now)
	again := mustLoad(t, mustSave(t, d, SaveOptions{}))
	if again.Info.Title != "Übersicht" || again.Info.Author != "日本語" {
		t.Fatalf("info text lost: %+v", again.Info)
	}
	if !again.Info.CreationDate.Equal(now) || !again.Info.ModDate.Equal(now) {
		t.Fatalf("dates lost: %v %v", again.Info.CreationDate, again.Info.ModDate)
	}
	p, _ := again.Page(0)
	if p.Width() != 595.28 {
		t.Fatalf("fractional media box lost: %v", p.Width())
	}
}

func TestParseDateForms(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"D:2023", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"D:20230102030405Z", time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"20230102030405+02'00'", time.Date(2023, 1, 2, 1, 4, 5, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseDate("yesterday"); err == nil {
		t.Fatalf("expected error for non-date")
	}
}

func TestEncryptedRejectedUnlessIgnored(t *testing.T) {
	data := buildFile(map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R >>",
		2: "<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		3: "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 10 10] >>",
		4: "<< /Filter /Standard /V 1 /R 2 >>",
	}, "<< /Size 5 /Root 1 0 R /Encrypt 4 0 R >>")
	if _, err := Load(context.Background(), data, LoadOptions{}); !errors.Is(err, ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
	d, err := Load(context.Background(), data, LoadOptions{IgnoreEncryption: true})
	if err != nil {
		t.Fatalf("load ignoring encryption: %v", err)
	}
	if !d.Encrypted() || d.PageCount() != 1 {
		t.Fatalf("unexpected state: encrypted=%v pages=%d", d.Encrypted(), d.PageCount())
	}
}

func TestAppendContentIsolatesExistingContent(t *testing.T) {
	d := mustLoad(t, inheritedFixture())
	p, _ := d.Page(0)
	p.AppendContent([]byte("BT /F1 12 Tf ET"))
	arr, ok := p.Dict().KV["Contents"].(*raw.ArrayObj)
	if !ok || arr.Len() != 4 {
		t.Fatalf("expected 4 content parts, got %#v", p.Dict().KV["Contents"])
	}
	first := d.Resolve(arr.Items[0]).(*raw.StreamObj)
	last := d.Resolve(arr.Items[3]).(*raw.StreamObj)
	if string(first.Data) != "q\n" || string(last.Data) != "BT /F1 12 Tf ET" {
		t.Fatalf("unexpected wrapping: %q ... %q", first.Data, last.Data)
	}

	blank := New().NewPage(10, 10)
	blank.AppendContent([]byte("0 0 m"))
	if arr := blank.Dict().KV["Contents"].(*raw.ArrayObj); arr.Len() != 1 {
		t.Fatalf("blank page should get one content stream, got %d", arr.Len())
	}
}

func TestAddResourcePicksFreshNames(t *testing.T) {
	d := mustLoad(t, inheritedFixture())
	p, _ := d.Page(0)
	name := p.AddResource("Font", "F", raw.Dict())
	if name != "F2" {
		t.Fatalf("expected F2 next to existing F1, got %s", name)
	}
	if gs := p.AddResource("ExtGState", "GS", raw.Dict()); gs != "GS1" {
		t.Fatalf("expected GS1, got %s", gs)
	}
}

func TestNormalizeAngle(t *testing.T) {
	for in, want := range map[int]int{0: 0, 90: 90, -90: 270, 450: 90, -720: 0, 270: 270} {
		if got := NormalizeAngle(in); got != want {
			t.Fatalf("NormalizeAngle(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestSaveDeduplicatesIdenticalObjects(t *testing.T) {
	data := buildFile(map[int]string{
		1: "<< /Type /Catalog /Pages 2 0 R >>",
		2: "<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 200 200] >>",
		3: "<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		4: "<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 6 0 R >> >> >>",
		5: "<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>",
		6: "<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>",
	}, "<< /Size 7 /Root 1 0 R >>")

	fontRef := func(d *Document, i int) raw.Object {
		p, _ := d.Page(i)
		res := d.Resolve(p.Dict().KV["Resources"]).(*raw.DictObj)
		return d.Resolve(res.KV["Font"]).(*raw.DictObj).KV["F1"]
	}
	for _, dedup := range []bool{false, true} {
		again := mustLoad(t, mustSave(t, mustLoad(t, data), SaveOptions{Deduplicate: dedup}))
		if again.PageCount() != 2 {
			t.Fatalf("dedup=%v: identical pages must stay distinct, got %d", dedup, again.PageCount())
		}
		same := fontRef(again, 0) == fontRef(again, 1)
		if same != dedup {
			t.Fatalf("dedup=%v: fonts shared=%v", dedup, same)
		}
	}
}
