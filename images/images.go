// Package images turns JPEG and PNG files into PDF image XObjects.
package images

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// ObjectAdder stores indirect objects; document.Document satisfies it.
type ObjectAdder interface {
	AddObject(obj raw.Object) raw.RefObj
}

// Image is a decoded image ready to embed.
type Image struct {
	Width  int
	Height int
	Format string // "jpeg" or "png"

	data       []byte
	colorSpace string
	filter     string
	decode     []float64
	alpha      []byte
}

// Decode tries JPEG first, then PNG. JPEG data is passed through as
// DCTDecode; PNG data is re-encoded with Flate and an alpha channel
// becomes a soft mask.
func Decode(data []byte) (*Image, error) {
	if img, err := decodeJPEG(data); err == nil {
		return img, nil
	}
	img, err := decodePNG(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return img, nil
}

func decodeJPEG(data []byte) (*Image, error) {
	if len(data) < 3 || data[0] != 0xFF || data[1] != 0xD8 || data[2] != 0xFF {
		return nil, errors.New("not a JPEG")
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	img := &Image{Width: cfg.Width, Height: cfg.Height, Format: "jpeg", data: data, filter: "DCTDecode"}
	switch cfg.ColorModel {
	case color.GrayModel:
		img.colorSpace = "DeviceGray"
	case color.CMYKModel:
		img.colorSpace = "DeviceCMYK"
		// Adobe CMYK JPEGs store inverted components.
		img.decode = []float64{1, 0, 1, 0, 1, 0, 1, 0}
	default:
		img.colorSpace = "DeviceRGB"
	}
	return img, nil
}

func decodePNG(data []byte) (*Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}

	img := &Image{Width: w, Height: h, Format: "png"}
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		gray := image.NewGray(image.Rect(0, 0, w, h))
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
		img.colorSpace = "DeviceGray"
		img.data = gray.Pix
		if gray.Stride != w {
			img.data = packRows(gray.Pix, gray.Stride, w, h)
		}
		return img, nil
	}

	nrgba, ok := src.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	}
	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			rgb = append(rgb, row[x], row[x+1], row[x+2])
			alpha = append(alpha, row[x+3])
			if row[x+3] != 0xFF {
				opaque = false
			}
		}
	}
	img.colorSpace = "DeviceRGB"
	img.data = rgb
	if !opaque {
		img.alpha = alpha
	}
	return img, nil
}

func packRows(pix []byte, stride, w, h int) []byte {
	out := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		out = append(out, pix[y*stride:y*stride+w]...)
	}
	return out
}

// HasAlpha reports whether the image carries a soft mask.
func (img *Image) HasAlpha() bool { return img.alpha != nil }

// Embed adds the image XObject (and its soft mask) to doc.
func (img *Image) Embed(doc ObjectAdder) (raw.RefObj, error) {
	d := imageDict(img.Width, img.Height, img.colorSpace)
	data := img.data
	if img.filter != "" {
		d.Set("Filter", raw.Name(img.filter))
	} else {
		packed, err := filters.EncodeFlate(img.data, flate.BestCompression)
		if err != nil {
			return raw.RefObj{}, fmt.Errorf("encode image: %w", err)
		}
		d.Set("Filter", raw.Name("FlateDecode"))
		data = packed
	}
	if img.decode != nil {
		arr := raw.NewArray()
		for _, v := range img.decode {
			arr.Append(raw.NumberInt(int64(v)))
		}
		d.Set("Decode", arr)
	}
	if img.alpha != nil {
		packed, err := filters.EncodeFlate(img.alpha, flate.BestCompression)
		if err != nil {
			return raw.RefObj{}, fmt.Errorf("encode soft mask: %w", err)
		}
		md := imageDict(img.Width, img.Height, "DeviceGray")
		md.Set("Filter", raw.Name("FlateDecode"))
		d.Set("SMask", doc.AddObject(raw.NewStream(md, packed)))
	}
	return doc.AddObject(raw.NewStream(d, data)), nil
}

func imageDict(w, h int, cs string) *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.Name("XObject"))
	d.Set("Subtype", raw.Name("Image"))
	d.Set("Width", raw.NumberInt(int64(w)))
	d.Set("Height", raw.NumberInt(int64(h)))
	d.Set("ColorSpace", raw.Name(cs))
	d.Set("BitsPerComponent", raw.NumberInt(8))
	return d
}
