package outline

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseBytes parses an uploaded document with the default options.
func ParseBytes(data []byte, ext string) ([]*Node, error) {
	return defaultParser.ParseBytes(data, ext)
}

// ParseBytes decodes an uploaded document and parses it.
//
// ext is the file extension of the upload. Known formats must be valid
// UTF-8 or UTF-16 with a byte order mark; anything else is an encoding
// failure. Unknown formats are decoded permissively, dropping invalid bytes,
// and parsed as text.
func (p *Parser) ParseBytes(data []byte, ext string) ([]*Node, error) {
	hint := FormatFromExt(ext)
	text, err := DecodeText(data, hint)
	if err != nil {
		return nil, &ParseError{Format: hint, Err: err}
	}
	return p.Parse(text, hint)
}

// DecodeText converts raw upload bytes into a string. A UTF-8 or UTF-16 byte
// order mark selects the encoding and is stripped.
func DecodeText(data []byte, hint Format) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		if hint.Known() {
			return "", err
		}
		decoded = data
	}

	if utf8.Valid(decoded) {
		return string(decoded), nil
	}
	if hint.Known() {
		return "", ErrEncoding
	}
	return strings.ToValidUTF8(string(decoded), ""), nil
}
