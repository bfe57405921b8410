// Package ops implements the document transformations: merge, compress,
// split, images to PDF, PDF to single pages, rotate, delete pages,
// protect, unlock, add text and extract pages.
package ops

import (
	"fmt"
	"strings"
)

// Operation identifies one transformation.
type Operation int

const (
	OpMerge Operation = iota + 1
	OpCompress
	OpSplit
	OpImagesToPDF
	OpPDFToImages
	OpRotate
	OpDeletePages
	OpProtect
	OpUnlock
	OpAddText
	OpExtractPages
)

type opInfo struct {
	name        string
	title       string
	description string
	aliases     []string
}

var opTable = map[Operation]opInfo{
	OpMerge:        {"merge", "Merge PDF", "Merge multiple PDFs", nil},
	OpCompress:     {"compress", "Compress PDF", "Compress PDF size", nil},
	OpSplit:        {"split", "Split PDF", "Split PDF into parts", nil},
	OpImagesToPDF:  {"jpg-to-pdf", "JPG to PDF", "Convert images to PDF", []string{"image-to-pdf", "img-to-pdf"}},
	OpPDFToImages:  {"pdf-to-jpg", "PDF to JPG", "Convert PDF to images", []string{"pdf-to-image"}},
	OpRotate:       {"rotate", "Rotate PDF", "Rotate PDF pages", nil},
	OpDeletePages:  {"delete-pages", "Delete Pages", "Remove pages", []string{"remove-pages"}},
	OpProtect:      {"protect", "Protect PDF", "Add password", []string{"add-password", "lock"}},
	OpUnlock:       {"unlock", "Unlock PDF", "Remove password", []string{"remove-password"}},
	OpAddText:      {"add-text", "Add Text", "Add watermark/text", []string{"watermark", "text", "editor"}},
	OpExtractPages: {"extract-pages", "Extract Pages", "Extract specific pages", []string{"extract"}},
}

var byName = func() map[string]Operation {
	m := make(map[string]Operation)
	for op, info := range opTable {
		m[info.name] = op
		for _, a := range info.aliases {
			m[a] = op
		}
	}
	return m
}()

// String returns the canonical tool name.
func (o Operation) String() string {
	if info, ok := opTable[o]; ok {
		return info.name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Title is the display name.
func (o Operation) Title() string { return opTable[o].title }

// Description is a one-line summary for API listings.
func (o Operation) Description() string { return opTable[o].description }

// ParseOperation resolves a tool name or synonym, case-insensitively.
func ParseOperation(name string) (Operation, error) {
	if op, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return op, nil
	}
	return 0, &Error{Kind: ErrUnknownOperation, Msg: fmt.Sprintf("Unknown tool: %q", name)}
}

// Operations lists every operation in canonical order.
func Operations() []Operation {
	out := make([]Operation, 0, len(opTable))
	for op := OpMerge; op <= OpExtractPages; op++ {
		out = append(out, op)
	}
	return out
}

// ToolNames lists the canonical names in canonical order.
func ToolNames() []string {
	ops := Operations()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return names
}
