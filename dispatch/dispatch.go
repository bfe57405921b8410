// Package dispatch exposes the operations over a JSON request/response
// envelope, as an http.Handler and as a plain function for the CLI.
package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/ops"
)

// Config controls request handling.
type Config struct {
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Logger         observability.Logger
	// Name and Version appear in the GET info document.
	Name     string
	Version  string
	Endpoint string
}

const (
	DefaultMaxBodyBytes   = 50 << 20
	DefaultRequestTimeout = 60 * time.Second
)

// Handler serves the API.
type Handler struct {
	cfg    Config
	engine *ops.Engine
}

func New(engine *ops.Engine, cfg Config) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Name == "" {
		cfg.Name = "pdftools API"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/api/pdf"
	}
	return &Handler{cfg: cfg, engine: engine}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := uuid.NewString()
	logger := h.cfg.Logger.With(observability.String("request_id", id))

	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type")
	hdr.Set("X-Request-ID", id)

	var status int
	var body []byte
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
		status, body = http.StatusOK, mustMarshal(h.info())
	case http.MethodPost:
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status, body = http.StatusRequestEntityTooLarge,
					failure(fmt.Sprintf("Request body exceeds %d bytes", h.cfg.MaxBodyBytes))
			} else {
				status, body = http.StatusBadRequest, failure("Failed to read request body")
			}
			break
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
		status, body = h.do(ctx, data, logger)
		cancel()
	default:
		status, body = http.StatusMethodNotAllowed, failure("Method not allowed. Use GET or POST.")
	}

	hdr.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Warn("write response", observability.Error("error", err))
	}
	logger.Info("request handled",
		observability.String("method", r.Method),
		observability.Int("status", status),
		observability.Int("bytes", len(body)),
		observability.Duration("duration", time.Since(start)))
}

// Do runs one JSON request body and returns the HTTP status and the JSON
// response.
func (h *Handler) Do(ctx context.Context, body []byte) (int, []byte) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()
	return h.do(ctx, body, h.cfg.Logger)
}

func (h *Handler) do(ctx context.Context, body []byte, logger observability.Logger) (int, []byte) {
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, failure("Invalid JSON body: " + err.Error())
	}
	if strings.TrimSpace(req.Tool) == "" {
		return http.StatusBadRequest, mustMarshal(map[string]any{
			"success":        false,
			"error":          "Tool name required",
			"example":        map[string]any{"tool": "merge", "pdfs": []string{"base64..."}},
			"availableTools": ops.ToolNames(),
		})
	}
	op, err := ops.ParseOperation(req.Tool)
	if err != nil {
		return http.StatusBadRequest, mustMarshal(map[string]any{
			"success":        false,
			"error":          err.Error(),
			"availableTools": ops.ToolNames(),
		})
	}

	logger = logger.With(observability.String("tool", op.String()))
	result, err := h.run(ctx, op, &req, body)
	if err != nil {
		status := statusFor(err)
		logger.Warn("operation rejected", observability.Int("status", status), observability.Error("error", err))
		return status, failure(err.Error())
	}
	out, err := envelope(req.Tool, result)
	if err != nil {
		logger.Error("encode response", observability.Error("error", err))
		return http.StatusInternalServerError, failure("Failed to encode response")
	}
	return http.StatusOK, out
}

// request holds the envelope fields; operation options are decoded from
// the same body into each operation's options struct.
type request struct {
	Tool   string   `json:"tool"`
	PDF    string   `json:"pdf"`
	PDFs   []string `json:"pdfs"`
	Images []string `json:"images"`
}

func (h *Handler) run(ctx context.Context, op ops.Operation, req *request, body []byte) (any, error) {
	pdf, err := decodeData("pdf", req.PDF)
	if err != nil {
		return nil, err
	}
	switch op {
	case ops.OpMerge:
		opts := ops.DefaultMergeOptions()
		if opts.Documents, err = decodeAll("pdfs", req.PDFs); err != nil {
			return nil, err
		}
		return h.engine.Merge(ctx, opts)
	case ops.OpCompress:
		opts := ops.DefaultCompressOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.Compress(ctx, opts)
	case ops.OpSplit:
		opts := ops.DefaultSplitOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.Split(ctx, opts)
	case ops.OpImagesToPDF:
		opts := ops.DefaultImagesToPDFOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Images = decodeImages(req.Images)
		return h.engine.ImagesToPDF(ctx, opts)
	case ops.OpPDFToImages:
		opts := ops.DefaultPDFToImagesOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.PDFToImages(ctx, opts)
	case ops.OpRotate:
		opts := ops.DefaultRotateOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.Rotate(ctx, opts)
	case ops.OpDeletePages:
		opts := ops.DefaultDeletePagesOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.DeletePages(ctx, opts)
	case ops.OpProtect:
		opts := ops.DefaultProtectOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.Protect(ctx, opts)
	case ops.OpUnlock:
		opts := ops.DefaultUnlockOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.Unlock(ctx, opts)
	case ops.OpAddText:
		opts := ops.DefaultAddTextOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.AddText(ctx, opts)
	case ops.OpExtractPages:
		opts := ops.DefaultExtractPagesOptions()
		if err := decodeOptions(op, body, &opts); err != nil {
			return nil, err
		}
		opts.Document = pdf
		return h.engine.ExtractPages(ctx, opts)
	}
	return nil, &ops.Error{Op: op, Kind: ops.ErrUnknownOperation, Msg: fmt.Sprintf("Unknown tool: %q", op.String())}
}

// decodeOptions overlays the request body on defaults.
func decodeOptions(op ops.Operation, body []byte, opts any) error {
	if err := json.Unmarshal(body, opts); err != nil {
		kind := ops.ErrInvalidOption
		if errors.Is(err, ops.ErrInvalidSelector) {
			kind = ops.ErrInvalidSelector
		}
		return &ops.Error{Op: op, Kind: kind, Msg: fmt.Sprintf("Invalid options for %s: %v", op, err), Err: err}
	}
	return nil
}

var dataURLPrefix = regexp.MustCompile(`^data:[\w.+-]+/[\w.+-]+;base64,`)

// decodeData reads base64 with an optional data URL prefix. Empty input
// yields nil.
func decodeData(field, s string) ([]byte, error) {
	s = strings.TrimSpace(dataURLPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
	if s == "" {
		return nil, nil
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, &ops.Error{Kind: ops.ErrInvalidOption, Msg: fmt.Sprintf("Invalid base64 data in %q", field), Err: err}
	}
	return data, nil
}

func decodeAll(field string, items []string) ([][]byte, error) {
	out := make([][]byte, 0, len(items))
	for i, s := range items {
		data, err := decodeData(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// decodeImages never fails: an image whose base64 is broken is passed on
// empty so the engine reports it per image and converts the rest.
func decodeImages(items []string) [][]byte {
	out := make([][]byte, len(items))
	for i, s := range items {
		if data, err := decodeData(fmt.Sprintf("images[%d]", i), s); err == nil {
			out[i] = data
		}
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ops.ErrMissingInput),
		errors.Is(err, ops.ErrInvalidSelector),
		errors.Is(err, ops.ErrNoValidPages),
		errors.Is(err, ops.ErrWouldRemoveAllPages),
		errors.Is(err, ops.ErrInvalidOption),
		errors.Is(err, ops.ErrUnknownOperation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// envelope merges {"success":true,"tool":...} with the result's fields.
func envelope(tool string, result any) ([]byte, error) {
	head, err := json.Marshal(struct {
		Success bool   `json:"success"`
		Tool    string `json:"tool"`
	}{true, tool})
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if len(body) <= 2 || body[0] != '{' {
		return head, nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	return append(out, body[1:]...), nil
}

func failure(msg string) []byte {
	return mustMarshal(map[string]any{"success": false, "error": msg})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

type toolInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) info() map[string]any {
	tools := make([]toolInfo, 0, len(ops.Operations()))
	for _, op := range ops.Operations() {
		tools = append(tools, toolInfo{ID: op.String(), Name: op.Title(), Description: op.Description()})
	}
	return map[string]any{
		"name":       h.cfg.Name,
		"version":    h.cfg.Version,
		"status":     "running",
		"totalTools": len(tools),
		"tools":      tools,
		"usage": map[string]any{
			"method":   http.MethodPost,
			"endpoint": h.cfg.Endpoint,
			"body":     map[string]any{"tool": "tool-name", "...": "tool-specific parameters"},
		},
	}
}
