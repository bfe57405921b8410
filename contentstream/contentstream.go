// Package contentstream builds the small page content streams drawn on
// top of existing pages.
package contentstream

import (
	"bytes"
	"math"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/writer"
)

// Operation is one operator with its operands.
type Operation struct {
	Operator string
	Operands []raw.Object
}

// Builder accumulates operations.
type Builder struct {
	ops []Operation
}

func (b *Builder) Op(operator string, operands ...raw.Object) *Builder {
	b.ops = append(b.ops, Operation{Operator: operator, Operands: operands})
	return b
}

func num(f float64) raw.NumberObj {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return raw.NumberInt(int64(f))
	}
	return raw.NumberFloat(f)
}

func nums(fs ...float64) []raw.Object {
	out := make([]raw.Object, len(fs))
	for i, f := range fs {
		out[i] = num(f)
	}
	return out
}

func (b *Builder) Save() *Builder    { return b.Op("q") }
func (b *Builder) Restore() *Builder { return b.Op("Q") }

// Concat appends a cm operator.
func (b *Builder) Concat(a, bb, c, d, e, f float64) *Builder {
	return b.Op("cm", nums(a, bb, c, d, e, f)...)
}

// ExtGState selects a named graphics state parameter dictionary.
func (b *Builder) ExtGState(name string) *Builder { return b.Op("gs", raw.Name(name)) }

func (b *Builder) FillRGB(r, g, bl float64) *Builder { return b.Op("rg", nums(r, g, bl)...) }

func (b *Builder) BeginText() *Builder { return b.Op("BT") }
func (b *Builder) EndText() *Builder   { return b.Op("ET") }

func (b *Builder) Font(name string, size float64) *Builder {
	return b.Op("Tf", raw.Name(name), num(size))
}

func (b *Builder) TextMatrix(a, bb, c, d, e, f float64) *Builder {
	return b.Op("Tm", nums(a, bb, c, d, e, f)...)
}

// ShowText appends Tj with already-encoded character codes.
func (b *Builder) ShowText(codes []byte) *Builder { return b.Op("Tj", raw.Str(codes)) }

// DrawXObject paints a named XObject.
func (b *Builder) DrawXObject(name string) *Builder { return b.Op("Do", raw.Name(name)) }

// Operations returns the accumulated operations.
func (b *Builder) Operations() []Operation { return append([]Operation(nil), b.ops...) }

// Bytes serializes the operations, one per line.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	for _, op := range b.ops {
		for _, o := range op.Operands {
			buf.Write(writer.Serialize(o))
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
