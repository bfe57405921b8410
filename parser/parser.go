package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdftools/filters"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/observability"
)

var (
	ErrNoHeader = errors.New("no PDF header found")
	ErrNoRoot   = errors.New("document catalog not found")
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	MaxObjectDepth      int   // nesting bound for arrays/dicts
	MaxDecompressedSize int64 // per-stream inflate bound
	Logger              observability.Logger
}

// DefaultConfig mirrors the limits used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		MaxObjectDepth:      64,
		MaxDecompressedSize: 256 << 20,
	}
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg      Config
	pipeline *filters.Pipeline
}

func NewDocumentParser(cfg Config) *DocumentParser {
	def := DefaultConfig()
	if cfg.MaxObjectDepth <= 0 {
		cfg.MaxObjectDepth = def.MaxObjectDepth
	}
	if cfg.MaxDecompressedSize <= 0 {
		cfg.MaxDecompressedSize = def.MaxDecompressedSize
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &DocumentParser{
		cfg:      cfg,
		pipeline: filters.Default(filters.Limits{MaxDecompressedSize: cfg.MaxDecompressedSize}),
	}
}

// Pipeline exposes the decode pipeline configured with this parser's limits.
func (p *DocumentParser) Pipeline() *filters.Pipeline { return p.pipeline }

// Parse reads every indirect object of the file. Broken or missing
// cross-reference data falls back to a full scan for object headers.
// Encryption is detected but not removed: strings and streams of an
// encrypted file are returned as stored.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	data := readAll(r)
	version, ok := detectHeaderVersion(data)
	if !ok {
		return nil, ErrNoHeader
	}

	l := newObjectLoader(ctx, data, nil, p.pipeline, p.cfg.MaxObjectDepth)
	entries, trailer, err := l.resolveXRef()
	if err == nil {
		l.entries = entries
		if !l.isCatalog(trailer) {
			err = ErrNoRoot
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.cfg.Logger.Warn("xref unusable, scanning for objects", observability.Error("error", err))
		l = newObjectLoader(ctx, data, scanObjectHeaders(data), p.pipeline, p.cfg.MaxObjectDepth)
		if len(l.entries) == 0 {
			return nil, fmt.Errorf("repair: %w", ErrNoRoot)
		}
		l.expandObjectStreams()
		trailer = l.repairTrailer()
		if !l.isCatalog(trailer) {
			return nil, ErrNoRoot
		}
	}

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object, len(l.entries)),
		Trailer: trailer,
		Version: version,
	}
	_, doc.Encrypted = trailer.Get("Encrypt")

	skipped := 0
	for num, e := range l.entries {
		if e.kind == entryFree || num == 0 {
			continue
		}
		obj, err := l.load(num)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			skipped++
			continue
		}
		doc.Objects[raw.ObjectRef{Num: num, Gen: e.gen}] = obj
	}
	if skipped > 0 {
		p.cfg.Logger.Debug("unreadable objects skipped", observability.Int("count", skipped))
	}
	return doc, nil
}

func detectHeaderVersion(data []byte) (string, bool) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return "", false
	}
	rest := data[idx+5:]
	end := 0
	for end < len(rest) && end < 8 && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "1.4", true
	}
	return string(rest[:end]), true
}

func readAll(r io.ReaderAt) []byte {
	if br, ok := r.(*bytes.Reader); ok {
		buf := make([]byte, br.Size())
		n, _ := br.ReadAt(buf, 0)
		return buf[:n]
	}
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil || int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
