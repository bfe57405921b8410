package filters

import (
	"fmt"

	"github.com/wudi/pdftools/ir/raw"
)

func intParam(params *raw.DictObj, key string, def int) int {
	if v, ok := params.Int(key); ok {
		return int(v)
	}
	return def
}

// applyPredictor undoes TIFF predictor 2 and the PNG predictors (10-15).
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	predictor := intParam(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	columns := intParam(params, "Columns", 1)
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	if columns <= 0 || colors <= 0 || bpc <= 0 {
		return nil, fmt.Errorf("invalid predictor parameters")
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (columns*colors*bpc + 7) / 8

	switch {
	case predictor == 2:
		if bpc != 8 {
			return nil, fmt.Errorf("TIFF predictor with %d bits per component unsupported", bpc)
		}
		out := append([]byte(nil), data...)
		for start := 0; start+rowLen <= len(out); start += rowLen {
			for i := colors; i < rowLen; i++ {
				out[start+i] += out[start+i-colors]
			}
		}
		return out, nil
	case predictor >= 10 && predictor <= 15:
		return decodePNG(data, rowLen, bpp)
	}
	return nil, fmt.Errorf("unsupported predictor: %d", predictor)
}

func decodePNG(data []byte, rowLen, bpp int) ([]byte, error) {
	stride := rowLen + 1
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		line := data[r*stride : (r+1)*stride]
		typ := line[0]
		cur := append([]byte(nil), line[1:]...)
		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch typ {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d in row %d", typ, r)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
