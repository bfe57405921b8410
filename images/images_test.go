package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
)

type objectStore struct {
	objects []raw.Object
}

func (s *objectStore) AddObject(obj raw.Object) raw.RefObj {
	s.objects = append(s.objects, obj)
	return raw.Ref(len(s.objects), 0)
}

func (s *objectStore) get(r raw.RefObj) raw.Object { return s.objects[r.R.Num-1] }

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeJPEGPassThrough(t *testing.T) {
	data := jpegBytes(t, 40, 30)
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Format != "jpeg" || img.Width != 40 || img.Height != 30 {
		t.Fatalf("unexpected image: %+v", img)
	}
	store := &objectStore{}
	ref, err := img.Embed(store)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	st := store.get(ref).(*raw.StreamObj)
	if f, _ := st.Dict.Name("Filter"); f != "DCTDecode" {
		t.Fatalf("filter %q", f)
	}
	if !bytes.Equal(st.Data, data) {
		t.Fatalf("JPEG bytes should pass through unchanged")
	}
	if cs, _ := st.Dict.Name("ColorSpace"); cs != "DeviceRGB" {
		t.Fatalf("color space %q", cs)
	}
}

func TestDecodePNGWithAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 128})
	src.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 64})
	src.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img, err := Decode(pngBytes(t, src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Format != "png" || !img.HasAlpha() {
		t.Fatalf("expected png with alpha: %+v", img)
	}
	store := &objectStore{}
	ref, err := img.Embed(store)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	st := store.get(ref).(*raw.StreamObj)
	pipe := filters.Default(filters.Limits{})
	rgb, err := pipe.Decode(context.Background(), st.Data, []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	want := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 10, 20, 30}
	if !bytes.Equal(rgb, want) {
		t.Fatalf("rgb % x want % x", rgb, want)
	}
	mask := store.get(st.Dict.KV["SMask"].(raw.RefObj)).(*raw.StreamObj)
	alpha, err := pipe.Decode(context.Background(), mask.Data, []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("inflate mask: %v", err)
	}
	if !bytes.Equal(alpha, []byte{255, 128, 64, 255}) {
		t.Fatalf("alpha % x", alpha)
	}
}

func TestDecodeOpaqueAndGrayPNG(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 3, 1))
	for i := range rgba.Pix {
		rgba.Pix[i] = 0xFF
	}
	img, err := Decode(pngBytes(t, rgba))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.HasAlpha() {
		t.Fatalf("opaque PNG should not get a soft mask")
	}

	gray := image.NewGray(image.Rect(0, 0, 4, 2))
	img, err = Decode(pngBytes(t, gray))
	if err != nil {
		t.Fatalf("decode gray: %v", err)
	}
	store := &objectStore{}
	ref, _ := img.Embed(store)
	if cs, _ := store.get(ref).(*raw.StreamObj).Dict.Name("ColorSpace"); cs != "DeviceGray" {
		t.Fatalf("gray PNG color space %q", cs)
	}
}

func TestDecodeRejectsOtherFormats(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("GIF89a...."), {0xFF, 0xD8, 0xFF, 0x00}} {
		if _, err := Decode(data); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat for %q, got %v", data, err)
		}
	}
}
