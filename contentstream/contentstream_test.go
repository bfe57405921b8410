package contentstream

import (
	"testing"

	"github.com/wudi/pdftools/ir/raw"
)

func TestBuilderBytes(t *testing.T) {
	var b Builder
	b.Save().ExtGState("GS1").FillRGB(1, 0.5, 0).
		BeginText().Font("F1", 12).TextMatrix(1, 0, 0, 1, 10.25, 20).
		ShowText([]byte("a(b)")).EndText().Restore()
	want := "q\n/GS1 gs\n1 0.5 0 rg\nBT\n/F1 12 Tf\n1 0 0 1 10.25 20 Tm\n(a\\(b\\)) Tj\nET\nQ\n"
	if got := string(b.Bytes()); got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestBuilderOperations(t *testing.T) {
	var b Builder
	b.Save().Concat(100, 0, 0, 50, 10, 20).DrawXObject("Im1").Restore()
	ops := b.Operations()
	if len(ops) != 4 {
		t.Fatalf("expected 4 operations, got %d", len(ops))
	}
	cm := ops[1]
	if cm.Operator != "cm" || len(cm.Operands) != 6 {
		t.Fatalf("unexpected cm: %+v", cm)
	}
	if w, _ := raw.Float(cm.Operands[0]); w != 100 {
		t.Fatalf("width operand %v", cm.Operands[0])
	}
	if n, ok := ops[2].Operands[0].(raw.NameObj); !ok || n.Val != "Im1" {
		t.Fatalf("Do operand %#v", ops[2].Operands[0])
	}
	if got, want := string(b.Bytes()), "q\n100 0 0 50 10 20 cm\n/Im1 Do\nQ\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
