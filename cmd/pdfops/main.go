package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/wudi/pdftools/dispatch"
	"github.com/wudi/pdftools/observability"
	"github.com/wudi/pdftools/ops"
)

const usage = `Usage:
  pdfops serve [flags]            serve the JSON API over HTTP
  pdfops run [flags] <request>    run one JSON request file ("-" for stdin)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(os.Args[2:])
	case "run":
		err = runRequest(os.Args[2:], os.Stdin, os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "pdfops: unknown command %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(os.Stderr, "pdfops: %v\n", err)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfops: %v\n", err)
		os.Exit(1)
	}
}

type usageError struct{ error }

// common flags shared by both commands.
type common struct {
	maxBody  int64
	timeout  time.Duration
	logLevel string
	logJSON  bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.Int64Var(&c.maxBody, "max-body", envInt64("PDFOPS_MAX_BODY_BYTES", dispatch.DefaultMaxBodyBytes), "Maximum request body size in bytes")
	fs.DurationVar(&c.timeout, "timeout", envDuration("PDFOPS_TIMEOUT", dispatch.DefaultRequestTimeout), "Per-request time budget")
	fs.StringVar(&c.logLevel, "log-level", envString("PDFOPS_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.BoolVar(&c.logJSON, "log-json", envBool("PDFOPS_LOG_JSON", false), "Emit JSON logs")
}

func (c *common) handler() (*dispatch.Handler, observability.Logger, error) {
	logger, err := observability.NewLogrusWriter(os.Stderr, c.logLevel, c.logJSON)
	if err != nil {
		return nil, nil, usageError{fmt.Errorf("log level: %w", err)}
	}
	engine := ops.New(ops.Config{Logger: logger})
	h := dispatch.New(engine, dispatch.Config{
		MaxBodyBytes:   c.maxBody,
		RequestTimeout: c.timeout,
		Logger:         logger,
	})
	return h, logger, nil
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", envString("PDFOPS_ADDR", ":8080"), "Listen address")
	maxConns := fs.Int("max-conns", envInt("PDFOPS_MAX_CONNS", 64), "Maximum concurrent connections")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if *maxConns <= 0 {
		return usageError{fmt.Errorf("max-conns must be positive")}
	}
	h, logger, err := c.handler()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/pdf", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	ln = netutil.LimitListener(ln, *maxConns)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("listening",
		observability.String("addr", ln.Addr().String()),
		observability.Int("max_conns", *maxConns))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runRequest(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var c common
	c.register(fs)
	outDir := fs.String("out", "", "Write produced PDFs to this directory instead of printing base64")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if fs.NArg() != 1 {
		return usageError{fmt.Errorf("run needs exactly one request file")}
	}
	var body []byte
	var err error
	if path := fs.Arg(0); path == "-" {
		body, err = io.ReadAll(io.LimitReader(stdin, c.maxBody+1))
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return fmt.Errorf("request exceeds %d bytes", c.maxBody)
	}
	h, _, err := c.handler()
	if err != nil {
		return err
	}

	status, resp := h.Do(context.Background(), body)
	if *outDir != "" && status == http.StatusOK {
		if resp, err = writeOutputs(resp, *outDir); err != nil {
			return err
		}
	}
	if _, err := stdout.Write(append(resp, '\n')); err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("request failed with status %d", status)
	}
	return nil
}

// writeOutputs saves every base64 "pdf" field found in the response under
// its "filename" and replaces the data with the written path.
func writeOutputs(resp []byte, dir string) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(resp, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := extractPDFs(doc, dir); err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

func extractPDFs(v any, dir string) error {
	switch t := v.(type) {
	case map[string]any:
		if enc, ok := t["pdf"].(string); ok {
			name, _ := t["filename"].(string)
			if name == "" {
				name = "output.pdf"
			}
			data, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			path := filepath.Join(dir, filepath.Base(name))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			delete(t, "pdf")
			t["path"] = path
		}
		for _, child := range t {
			if err := extractPDFs(child, dir); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := extractPDFs(child, dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
