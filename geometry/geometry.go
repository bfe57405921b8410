// Package geometry computes where overlays and images go on a page.
// Coordinates are PDF user space: points, origin at the bottom-left.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidColor = errors.New("invalid hex color")

// Rect is a placement rectangle; (X, Y) is its lower-left corner.
type Rect struct {
	X, Y, Width, Height float64
}

// Anchor names where an overlay sits on the page.
type Anchor int

const (
	Center Anchor = iota
	TopLeft
	TopRight
	TopCenter
	BottomLeft
	BottomRight
	BottomCenter
)

var anchorNames = [...]string{
	Center:       "center",
	TopLeft:      "top-left",
	TopRight:     "top-right",
	TopCenter:    "top-center",
	BottomLeft:   "bottom-left",
	BottomRight:  "bottom-right",
	BottomCenter: "bottom-center",
}

func (a Anchor) String() string {
	if a < 0 || int(a) >= len(anchorNames) {
		return anchorNames[Center]
	}
	return anchorNames[a]
}

// ParseAnchor maps a position name to an Anchor, case-insensitively.
// Unknown names yield Center.
func ParseAnchor(s string) Anchor {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range anchorNames {
		if name == s {
			return Anchor(a)
		}
	}
	return Center
}

// PlaceOverlay positions content of the given size relative to the page
// edges. margin applies on the anchored sides only.
func PlaceOverlay(pageW, pageH, contentW, contentH float64, a Anchor, margin float64) Rect {
	r := Rect{Width: contentW, Height: contentH}
	switch a {
	case TopLeft, BottomLeft:
		r.X = margin
	case TopRight, BottomRight:
		r.X = pageW - contentW - margin
	default:
		r.X = (pageW - contentW) / 2
	}
	switch a {
	case TopLeft, TopRight, TopCenter:
		r.Y = pageH - margin - contentH
	case BottomLeft, BottomRight, BottomCenter:
		r.Y = margin
	default:
		r.Y = (pageH - contentH) / 2
	}
	return r
}

// PlaceImage sizes an image inside the page less margin on every side and
// centres it on the page. With fit the image is scaled uniformly to the
// available area; without it each axis is clamped on its own, which can
// change the aspect ratio.
func PlaceImage(pageW, pageH, imgW, imgH, margin float64, fit bool) Rect {
	availW := pageW - 2*margin
	availH := pageH - 2*margin
	var w, h float64
	if fit {
		scale := math.Min(availW/imgW, availH/imgH)
		w, h = imgW*scale, imgH*scale
	} else {
		w, h = math.Min(imgW, availW), math.Min(imgH, availH)
	}
	return Rect{X: (pageW - w) / 2, Y: (pageH - h) / 2, Width: w, Height: h}
}

// Color is an RGB colour with channels in [0, 1].
type Color struct {
	R, G, B float64
}

// ParseHexColor reads "#rrggbb" or "rrggbb".
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: %q must have 6 hex digits", ErrInvalidColor, s)
	}
	var ch [3]float64
	for i := range ch {
		v, err := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		ch[i] = float64(v) / 255
	}
	return Color{R: ch[0], G: ch[1], B: ch[2]}, nil
}
