package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/pdftools/ir/raw"
)

// Info is the document information dictionary.
type Info struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate time.Time
	ModDate      time.Time
	// Custom holds other string-valued entries.
	Custom map[string]string
}

func (i Info) empty() bool {
	return i.Title == "" && i.Author == "" && i.Subject == "" && i.Keywords == "" &&
		i.Creator == "" && i.Producer == "" && i.CreationDate.IsZero() && i.ModDate.IsZero() && len(i.Custom) == 0
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// DecodeTextString decodes a PDF text string: UTF-16BE with a byte order
// mark, otherwise a single-byte encoding close to Latin-1.
func DecodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		s, err := utf16BE.NewDecoder().Bytes(b)
		if err == nil {
			return string(s)
		}
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// EncodeTextString encodes s as a PDF text string, using UTF-16BE only when
// some rune falls outside Latin-1.
func EncodeTextString(s string) raw.StringObj {
	if b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s)); err == nil {
		return raw.Str(b)
	}
	b, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return raw.Str([]byte(s))
	}
	return raw.HexStr(b)
}

// FormatDate renders t in PDF date syntax (UTC).
func FormatDate(t time.Time) string {
	return "D:" + t.UTC().Format("20060102150405") + "Z"
}

// ParseDate reads PDF date syntax, tolerating truncated fields and a
// missing "D:" prefix.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	digits := 0
	for digits < len(s) && digits < 14 && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits < 4 {
		return time.Time{}, fmt.Errorf("invalid PDF date %q", s)
	}
	field := func(start, end, def int) int {
		if end > digits {
			return def
		}
		v, _ := strconv.Atoi(s[start:end])
		return v
	}
	year := field(0, 4, 0)
	month := field(4, 6, 1)
	day := field(6, 8, 1)
	hour := field(8, 10, 0)
	minute := field(10, 12, 0)
	sec := field(12, 14, 0)

	loc := time.UTC
	rest := s[digits:]
	if len(rest) > 0 && (rest[0] == '+' || rest[0] == '-') {
		tz := strings.NewReplacer("'", "").Replace(rest[1:])
		var oh, om int
		if len(tz) >= 2 {
			oh, _ = strconv.Atoi(tz[:2])
		}
		if len(tz) >= 4 {
			om, _ = strconv.Atoi(tz[2:4])
		}
		offset := oh*3600 + om*60
		if rest[0] == '-' {
			offset = -offset
		}
		loc = time.FixedZone("", offset)
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc), nil
}

var infoKeys = map[string]bool{
	"Title": true, "Author": true, "Subject": true, "Keywords": true,
	"Creator": true, "Producer": true, "CreationDate": true, "ModDate": true,
}

func readInfo(dict *raw.DictObj, resolve func(raw.Object) raw.Object) Info {
	var info Info
	if dict == nil {
		return info
	}
	text := func(key string) string {
		o, ok := dict.Get(key)
		if !ok {
			return ""
		}
		s, ok := resolve(o).(raw.StringObj)
		if !ok {
			return ""
		}
		return DecodeTextString(s.Bytes)
	}
	info.Title = text("Title")
	info.Author = text("Author")
	info.Subject = text("Subject")
	info.Keywords = text("Keywords")
	info.Creator = text("Creator")
	info.Producer = text("Producer")
	if t, err := ParseDate(text("CreationDate")); err == nil {
		info.CreationDate = t
	}
	if t, err := ParseDate(text("ModDate")); err == nil {
		info.ModDate = t
	}
	for _, k := range dict.Keys() {
		if infoKeys[k] {
			continue
		}
		if v := text(k); v != "" {
			if info.Custom == nil {
				info.Custom = make(map[string]string)
			}
			info.Custom[k] = v
		}
	}
	return info
}

func (i Info) dict() *raw.DictObj {
	d := raw.Dict()
	set := func(key, val string) {
		if val != "" {
			d.Set(key, EncodeTextString(val))
		}
	}
	for k, v := range i.Custom {
		set(k, v)
	}
	set("Title", i.Title)
	set("Author", i.Author)
	set("Subject", i.Subject)
	set("Keywords", i.Keywords)
	set("Creator", i.Creator)
	set("Producer", i.Producer)
	if !i.CreationDate.IsZero() {
		d.Set("CreationDate", raw.Str([]byte(FormatDate(i.CreationDate))))
	}
	if !i.ModDate.IsZero() {
		d.Set("ModDate", raw.Str([]byte(FormatDate(i.ModDate))))
	}
	return d
}
