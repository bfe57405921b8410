package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type CompressOptions struct {
	Document []byte `json:"-"`
	// Quality is echoed back; the same lossless rewrite is applied for
	// every value.
	Quality string `json:"quality"`
}

func DefaultCompressOptions() CompressOptions { return CompressOptions{Quality: "medium"} }

// Percent marshals as "N%".
type Percent int

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%d%%", int(p)))
}

type CompressResult struct {
	Message             string  `json:"message"`
	Quality             string  `json:"quality"`
	OriginalSizeBytes   int     `json:"originalSizeBytes"`
	OriginalSizeKB      int     `json:"originalSizeKB"`
	CompressedSizeBytes int     `json:"compressedSizeBytes"`
	CompressedSizeKB    int     `json:"compressedSizeKB"`
	SavedBytes          int     `json:"savedBytes"`
	SavedKB             int     `json:"savedKB"`
	ReductionPercent    Percent `json:"reductionPercent"`
	Pages               int     `json:"pages"`
	Output
}

// Compress rewrites the document with object streams, a cross-reference
// stream and Flate on unfiltered streams. Unreachable objects are dropped.
func (e *Engine) Compress(ctx context.Context, opts CompressOptions) (*CompressResult, error) {
	c := e.begin(OpCompress)
	doc, err := e.load(ctx, OpCompress, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	data, err := e.save(ctx, OpCompress, doc, true)
	if err != nil {
		return nil, c.fail(err)
	}
	orig := len(opts.Document)
	saved := orig - len(data)
	reduction := 0
	if orig > 0 {
		reduction = int(math.Floor(float64(saved)/float64(orig)*100 + 0.5))
	}
	if reduction < 0 {
		reduction = 0
	}
	quality := opts.Quality
	if quality == "" {
		quality = "medium"
	}
	c.done(doc.PageCount(), len(data))
	return &CompressResult{
		Message:             "PDF compressed successfully",
		Quality:             quality,
		OriginalSizeBytes:   orig,
		OriginalSizeKB:      kb(orig),
		CompressedSizeBytes: len(data),
		CompressedSizeKB:    kb(len(data)),
		SavedBytes:          saved,
		SavedKB:             kb(saved),
		ReductionPercent:    Percent(reduction),
		Pages:               doc.PageCount(),
		Output:              newOutput(data, e.filename("compressed")),
	}, nil
}

// Permissions are recorded and echoed; they are not enforced.
type Permissions struct {
	Printing  bool `json:"printing"`
	Copying   bool `json:"copying"`
	Modifying bool `json:"modifying"`
}

type ProtectOptions struct {
	Document      []byte      `json:"-"`
	UserPassword  string      `json:"userPassword"`
	OwnerPassword string      `json:"ownerPassword"`
	Permissions   Permissions `json:"permissions"`
}

func DefaultProtectOptions() ProtectOptions {
	return ProtectOptions{Permissions: Permissions{Printing: true, Copying: true, Modifying: true}}
}

const protectNote = "Only document metadata is updated. The output is not encrypted and opens without a password."

type ProtectResult struct {
	Message          string      `json:"message"`
	Pages            int         `json:"pages"`
	UserPasswordSet  bool        `json:"userPasswordSet"`
	OwnerPasswordSet bool        `json:"ownerPasswordSet"`
	Permissions      Permissions `json:"permissions"`
	Note             string      `json:"note"`
	Output
}

// Protect marks the document as protected in its Info dictionary. No
// encryption is applied.
func (e *Engine) Protect(ctx context.Context, opts ProtectOptions) (*ProtectResult, error) {
	c := e.begin(OpProtect)
	if len(opts.Document) == 0 {
		return nil, c.fail(newError(OpProtect, ErrMissingInput, "PDF data required"))
	}
	if opts.UserPassword == "" && opts.OwnerPassword == "" {
		return nil, c.fail(newError(OpProtect, ErrMissingInput,
			"At least one password required (userPassword or ownerPassword)"))
	}
	doc, err := e.load(ctx, OpProtect, opts.Document)
	if err != nil {
		return nil, c.fail(err)
	}
	now := e.cfg.Now()
	if doc.Info.Title == "" {
		doc.Info.Title = "Protected Document"
	}
	doc.Info.Producer = e.cfg.Producer
	doc.Info.Creator = e.cfg.Producer + " - Protected"
	doc.Info.CreationDate = now
	doc.Info.ModDate = now

	data, err := e.save(ctx, OpProtect, doc, false)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done(doc.PageCount(), len(data))
	return &ProtectResult{
		Message:          "PDF protection applied",
		Pages:            doc.PageCount(),
		UserPasswordSet:  opts.UserPassword != "",
		OwnerPasswordSet: opts.OwnerPassword != "",
		Permissions:      opts.Permissions,
		Note:             protectNote,
		Output:           newOutput(data, e.filename("protected")),
	}, nil
}

type UnlockOptions struct {
	Document []byte `json:"-"`
	// Password is accepted for interface compatibility; nothing is
	// decrypted.
	Password string `json:"password"`
}

func DefaultUnlockOptions() UnlockOptions { return UnlockOptions{} }

type UnlockResult struct {
	Message string `json:"message"`
	Pages   int    `json:"pages"`
	Output
}

// Unlock copies every page into a fresh document without an /Encrypt
// entry.
func (e *Engine) Unlock(ctx context.Context, opts UnlockOptions) (*UnlockResult, error) {
	c := e.begin(OpUnlock)
	src, err := e.load(ctx, OpUnlock, opts.Document)
	if err != nil {
		var oe *Error
		if errors.As(err, &oe) && oe.Kind == ErrDecodeFailure {
			oe.Msg = "Failed to unlock PDF. Password may be incorrect."
		}
		return nil, c.fail(err)
	}
	out := e.newDocument()
	if err := copyInto(ctx, OpUnlock, out, src, allIndices(src.PageCount())); err != nil {
		return nil, c.fail(err)
	}
	out.Info.Producer = e.cfg.Producer + " - Unlocked"
	out.Info.Creator = e.cfg.Producer

	data, err := e.save(ctx, OpUnlock, out, false)
	if err != nil {
		return nil, c.fail(err)
	}
	c.done(out.PageCount(), len(data))
	return &UnlockResult{
		Message: "PDF unlocked successfully",
		Pages:   out.PageCount(),
		Output:  newOutput(data, e.filename("unlocked")),
	}, nil
}
