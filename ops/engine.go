package ops

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wudi/pdftools/document"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/parser"
)

// Config holds the Engine's immutable settings.
type Config struct {
	// Now is the clock used for filename hints and Info dates.
	Now    func() time.Time
	Logger observability.Logger
	Parser parser.Config
	// Producer brands the Info dictionary written by protect and unlock.
	Producer string
}

// DefaultProducer is used when Config.Producer is empty.
const DefaultProducer = "pdftools"

// Engine runs operations. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// New fills zero fields of cfg with defaults.
func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Producer == "" {
		cfg.Producer = DefaultProducer
	}
	if cfg.Parser.MaxObjectDepth == 0 && cfg.Parser.MaxDecompressedSize == 0 {
		logger := cfg.Parser.Logger
		cfg.Parser = parser.DefaultConfig()
		cfg.Parser.Logger = logger
	}
	return &Engine{cfg: cfg}
}

// Output is one produced document.
type Output struct {
	FileSizeBytes int    `json:"fileSizeBytes"`
	FileSizeKB    int    `json:"fileSizeKB"`
	PDF           []byte `json:"pdf"`
	Filename      string `json:"filename"`
}

func newOutput(data []byte, filename string) Output {
	return Output{FileSizeBytes: len(data), FileSizeKB: kb(len(data)), PDF: data, Filename: filename}
}

// kb rounds half up, also for negative sizes.
func kb(n int) int { return int(math.Floor(float64(n)/1024 + 0.5)) }

func (e *Engine) filename(prefix string) string {
	return fmt.Sprintf("%s_%d.pdf", prefix, e.cfg.Now().UnixMilli())
}

// call tracks one operation for logging.
type call struct {
	start  time.Time
	logger observability.Logger
}

func (e *Engine) begin(op Operation) *call {
	c := &call{start: time.Now(), logger: e.cfg.Logger.With(observability.String("op", op.String()))}
	c.logger.Debug("operation started")
	return c
}

func (c *call) done(pages, bytes int) {
	c.logger.Info("operation finished",
		observability.Int("pages", pages),
		observability.Int("bytes", bytes),
		observability.Duration("duration", time.Since(c.start)))
}

func (c *call) fail(err error) error {
	c.logger.Warn("operation failed", observability.Error("error", err))
	return err
}

func (e *Engine) load(ctx context.Context, op Operation, data []byte) (*document.Document, error) {
	if len(data) == 0 {
		return nil, newError(op, ErrMissingInput, "PDF data required")
	}
	doc, err := document.Load(ctx, data, document.LoadOptions{Parser: e.cfg.Parser, IgnoreEncryption: true})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, canceled(op, ctxErr)
		}
		return nil, wrapError(op, ErrDecodeFailure, err, "failed to load PDF: %v", err)
	}
	doc.SetLogger(e.cfg.Logger)
	return doc, nil
}

func (e *Engine) newDocument() *document.Document {
	doc := document.New()
	doc.SetLogger(e.cfg.Logger)
	doc.Stamp(e.cfg.Now())
	return doc
}

func (e *Engine) save(ctx context.Context, op Operation, doc *document.Document, compact bool) ([]byte, error) {
	data, err := doc.Save(ctx, document.SaveOptions{Compact: compact, Deduplicate: compact})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, canceled(op, ctxErr)
		}
		return nil, wrapError(op, ErrEncodeFailure, err, "failed to save PDF: %v", err)
	}
	return data, nil
}

// copyInto appends src's pages at indices to dst.
func copyInto(ctx context.Context, op Operation, dst, src *document.Document, indices []int) error {
	copied, err := dst.CopyPages(ctx, src, indices)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return canceled(op, ctxErr)
		}
		return wrapError(op, ErrDecodeFailure, err, "failed to copy pages: %v", err)
	}
	for _, p := range copied {
		if err := dst.AddPage(p); err != nil {
			return wrapError(op, ErrEncodeFailure, err, "failed to add page: %v", err)
		}
	}
	return nil
}

func canceled(op Operation, err error) *Error {
	return &Error{Op: op, Kind: err, Msg: fmt.Sprintf("%s: %v", op, err), Err: err}
}

func checkContext(ctx context.Context, op Operation) error {
	if err := ctx.Err(); err != nil {
		return canceled(op, err)
	}
	return nil
}
