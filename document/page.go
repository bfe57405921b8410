package document

import (
	"fmt"
	"math"

	"github.com/wudi/pdftools/ir/raw"
)

// Page is one page of a Document. Inherited attributes are materialised on
// the page itself.
type Page struct {
	doc  *Document
	ref  raw.ObjectRef
	dict *raw.DictObj
}

// Box is a page boundary rectangle in default user space.
type Box struct {
	LLX, LLY, URX, URY float64
}

func (b Box) Width() float64  { return math.Abs(b.URX - b.LLX) }
func (b Box) Height() float64 { return math.Abs(b.URY - b.LLY) }

// defaultMediaBox applies when a page carries none (US Letter).
var defaultMediaBox = Box{0, 0, 612, 792}

// Document returns the owning document.
func (p *Page) Document() *Document { return p.doc }

// Dict exposes the page dictionary. Mutations are written on Save.
func (p *Page) Dict() *raw.DictObj { return p.dict }

// MediaBox returns the normalised media box.
func (p *Page) MediaBox() Box {
	arr, ok := p.doc.Resolve(p.dict.KV["MediaBox"]).(*raw.ArrayObj)
	if !ok || arr.Len() < 4 {
		return defaultMediaBox
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		f, ok := raw.Float(p.doc.Resolve(arr.Items[i]))
		if !ok {
			return defaultMediaBox
		}
		v[i] = f
	}
	return Box{
		LLX: math.Min(v[0], v[2]), LLY: math.Min(v[1], v[3]),
		URX: math.Max(v[0], v[2]), URY: math.Max(v[1], v[3]),
	}
}

func (p *Page) Width() float64  { return p.MediaBox().Width() }
func (p *Page) Height() float64 { return p.MediaBox().Height() }

// Rotation returns the /Rotate angle normalised into [0, 360).
func (p *Page) Rotation() int {
	f, ok := raw.Float(p.doc.Resolve(p.dict.KV["Rotate"]))
	if !ok {
		return 0
	}
	return NormalizeAngle(int(f))
}

// SetRotation stores an absolute angle, normalised into [0, 360).
func (p *Page) SetRotation(deg int) {
	p.dict.Set("Rotate", raw.NumberInt(int64(NormalizeAngle(deg))))
}

// NormalizeAngle maps any angle to [0, 360).
func NormalizeAngle(deg int) int {
	return ((deg % 360) + 360) % 360
}

// resources returns the page's resource dictionary as a direct dict owned by
// this page, copying shared or indirect dictionaries first.
func (p *Page) resources() *raw.DictObj {
	res, ok := p.doc.Resolve(p.dict.KV["Resources"]).(*raw.DictObj)
	if !ok {
		res = raw.Dict()
	} else {
		res = raw.Clone(res).(*raw.DictObj)
	}
	p.dict.Set("Resources", res)
	return res
}

// AddResource registers value under a fresh name in the given resource
// category (e.g. "Font", "XObject", "ExtGState") and returns the name.
func (p *Page) AddResource(category, prefix string, value raw.Object) string {
	res := p.resources()
	cat, ok := p.doc.Resolve(res.KV[category]).(*raw.DictObj)
	if !ok {
		cat = raw.Dict()
	} else {
		cat = raw.Clone(cat).(*raw.DictObj)
	}
	res.Set(category, cat)
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := cat.Get(name); !taken {
			cat.Set(name, value)
			return name
		}
	}
}

// contentItems returns the current /Contents as a list of entries.
func (p *Page) contentItems() []raw.Object {
	c, ok := p.dict.Get("Contents")
	if !ok {
		return nil
	}
	switch v := c.(type) {
	case raw.RefObj:
		if arr, ok := p.doc.Object(v.R).(*raw.ArrayObj); ok {
			return append([]raw.Object(nil), arr.Items...)
		}
		return []raw.Object{v}
	case *raw.ArrayObj:
		return append([]raw.Object(nil), v.Items...)
	case *raw.StreamObj:
		return []raw.Object{p.doc.AddObject(v)}
	}
	return nil
}

// AppendContent draws data on top of the existing page content. The
// existing content is isolated in its own graphics state first so its
// transformations cannot leak into data.
func (p *Page) AppendContent(data []byte) {
	items := p.contentItems()
	var out []raw.Object
	if len(items) > 0 {
		out = append(out, p.doc.AddObject(raw.NewStream(raw.Dict(), []byte("q\n"))))
		out = append(out, items...)
		out = append(out, p.doc.AddObject(raw.NewStream(raw.Dict(), []byte("\nQ\n"))))
	}
	out = append(out, p.doc.AddObject(raw.NewStream(raw.Dict(), data)))
	p.dict.Set("Contents", raw.NewArray(out...))
}
