package roster

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is the codepage the roster page is published in.
const DefaultEncoding = "windows-1252"

// LookupEncoding resolves a WHATWG encoding label. Empty means DefaultEncoding.
// Labels that resolve to a multi-byte or Unicode encoding are rejected.
func LookupEncoding(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultEncoding
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	if _, ok := enc.(*charmap.Charmap); !ok {
		return nil, fmt.Errorf("encoding %q is not a single-byte codepage", label)
	}
	return enc, nil
}

// Decode converts single-byte encoded bytes into UTF-8 text.
func Decode(raw []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		enc = charmap.Windows1252
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(out), nil
}
