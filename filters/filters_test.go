package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdftools/ir/raw"
)

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func TestFlateDecode(t *testing.T) {
	dec := NewFlateDecoder(0)
	out, err := dec.Decode(context.Background(), zlibBytes(t, []byte("hello world")), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("headerless"))
	w.Close()

	out, err := NewFlateDecoder(0).Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "headerless" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	// PNG predictor rows: Sub then Up.
	comp := zlibBytes(t, []byte{1, 10, 2, 20, 2, 1, 1, 1})

	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(12))
	params.Set("Columns", raw.NumberInt(3))

	out, err := NewFlateDecoder(0).Decode(context.Background(), comp, params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 12, 32, 11, 13, 33}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestTIFFPredictor(t *testing.T) {
	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(2))
	params.Set("Columns", raw.NumberInt(3))
	out, err := NewFlateDecoder(0).Decode(context.Background(), zlibBytes(t, []byte{5, 1, 1}), params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, []byte{5, 6, 7}) {
		t.Fatalf("got %v", out)
	}
}

func TestFlateSizeLimit(t *testing.T) {
	data := zlibBytes(t, bytes.Repeat([]byte("a"), 1000))
	_, err := NewFlateDecoder(100).Decode(context.Background(), data, nil)
	if !errors.Is(err, ErrSizeLimit) {
		t.Fatalf("expected ErrSizeLimit, got %v", err)
	}
}

func TestASCIIDecoders(t *testing.T) {
	out, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6C 6C 6F>"), nil)
	if err != nil || string(out) != "Hello" {
		t.Fatalf("hex: %q %v", out, err)
	}
	out, err = NewASCII85Decoder().Decode(context.Background(), []byte("<~87cURDZ~>"), nil)
	if err != nil || string(out) != "Hello" {
		t.Fatalf("a85: %q %v", out, err)
	}
}

func TestPipelineChain(t *testing.T) {
	p := Default(Limits{})
	encoded := []byte("48656C6C6F>")
	out, err := p.Decode(context.Background(), encoded, []string{"ASCIIHexDecode"}, nil)
	if err != nil || string(out) != "Hello" {
		t.Fatalf("pipeline: %q %v", out, err)
	}
	if _, err := p.Decode(context.Background(), encoded, []string{"JBIG2Decode"}, nil); !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter, got %v", err)
	}
	if p.Supports([]string{"FlateDecode", "DCTDecode"}) {
		t.Fatalf("DCTDecode should not be supported")
	}
}

func TestEncodeFlateRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("stream content "), 50)
	enc, err := EncodeFlate(src, flate.BestCompression)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) >= len(src) {
		t.Fatalf("expected compression, got %d >= %d", len(enc), len(src))
	}
	dec, err := NewFlateDecoder(0).Decode(context.Background(), enc, nil)
	if err != nil || !bytes.Equal(dec, src) {
		t.Fatalf("round trip failed: %v", err)
	}
}

func TestStreamFilters(t *testing.T) {
	d := raw.Dict()
	d.Set("Filter", raw.NewArray(raw.Name("ASCIIHexDecode"), raw.Name("FlateDecode")))
	d.Set("DecodeParms", raw.NewArray(raw.NullObj{}, raw.Dict()))
	names, params := StreamFilters(d, nil)
	if len(names) != 2 || names[1] != "FlateDecode" {
		t.Fatalf("names: %v", names)
	}
	if len(params) != 2 || params[0] != nil || params[1] == nil {
		t.Fatalf("params: %v", params)
	}
}
