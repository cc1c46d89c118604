// Package transport converts documents between their raw byte form and the
// base64 data URL form they travel in over HTTP.
package transport

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// DefaultMaxRawBytes caps the decoded size of an incoming document
	// unless the codec is built with a different limit.
	DefaultMaxRawBytes = 50 << 20

	pdfMediaType  = "application/pdf"
	dataURLPrefix = "data:"
	base64Marker  = ";base64,"
)

// TransportError reports encoded-document text that does not match the
// expected data URL shape.
type TransportError struct {
	Expected string
	Found    string
	Err      error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("malformed document encoding: expected %s, found %s", e.Expected, e.Found)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// SizeLimitError reports a document whose decoded size would exceed the
// configured ceiling. It is raised from the encoded length alone, before any
// decoding work happens.
type SizeLimitError struct {
	RawBytes     int64 // decoded size estimated from the encoded length
	EncodedBytes int64
	LimitBytes   int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("document of %.1fMB (%.1fMB encoded) exceeds the %.0fMB limit",
		megabytes(e.RawBytes), megabytes(e.EncodedBytes), megabytes(e.LimitBytes))
}

func megabytes(b int64) float64 {
	return float64(b) / (1 << 20)
}

// Codec encodes and decodes documents carried as base64 data URL text.
type Codec struct {
	maxRawBytes int64
}

// NewCodec builds a codec enforcing the given decoded-size ceiling in bytes.
// A non-positive limit falls back to DefaultMaxRawBytes.
func NewCodec(maxRawBytes int64) *Codec {
	if maxRawBytes <= 0 {
		maxRawBytes = DefaultMaxRawBytes
	}
	return &Codec{maxRawBytes: maxRawBytes}
}

// MaxRawBytes returns the decoded-size ceiling.
func (c *Codec) MaxRawBytes() int64 { return c.maxRawBytes }

// Decode turns data URL text into raw document bytes. Bare base64 without the
// data URL wrapper is accepted too. The size guard runs against the encoded
// length so an oversized document is rejected without decoding it.
func (c *Codec) Decode(encoded string) ([]byte, error) {
	payload := encoded
	if strings.HasPrefix(encoded, dataURLPrefix) {
		idx := strings.Index(encoded, base64Marker)
		if idx < 0 {
			return nil, &TransportError{
				Expected: fmt.Sprintf("a %q marker after the media type", base64Marker),
				Found:    fmt.Sprintf("%q", truncate(encoded, 48)),
			}
		}
		payload = encoded[idx+len(base64Marker):]
	}
	if payload == "" {
		return nil, &TransportError{Expected: "a base64 payload", Found: "empty text"}
	}

	encodedLen := int64(len(payload))
	rawLen := encodedLen / 4 * 3
	if rawLen > c.maxRawBytes {
		return nil, &SizeLimitError{RawBytes: rawLen, EncodedBytes: encodedLen, LimitBytes: c.maxRawBytes}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &TransportError{Expected: "standard base64 document data", Found: "undecodable text", Err: err}
	}
	return data, nil
}

// Encode wraps raw document bytes in the application/pdf data URL form.
func (c *Codec) Encode(data []byte) string {
	return dataURLPrefix + pdfMediaType + base64Marker + base64.StdEncoding.EncodeToString(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
