package filesystem

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Charset is a validated IANA character set. The zero value is UTF-8.
type Charset struct {
	name string
	enc  encoding.Encoding
}

// ParseCharset looks up an IANA charset name such as "ISO-8859-1".
func ParseCharset(name string) (Charset, error) {
	if name == "" || strings.EqualFold(name, "UTF-8") || strings.EqualFold(name, "UTF8") {
		return Charset{}, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return Charset{}, fmt.Errorf("unsupported charset %q", name)
	}
	return Charset{name: name, enc: enc}, nil
}

// String returns the charset name.
func (c Charset) String() string {
	if c.enc == nil {
		return "UTF-8"
	}
	return c.name
}

// Reader decodes r into UTF-8.
func (c Charset) Reader(r io.Reader) io.Reader {
	if c.enc == nil {
		return r
	}
	return transform.NewReader(r, c.enc.NewDecoder())
}

// Writer encodes UTF-8 written to it into the charset. Close flushes the
// encoder but leaves w open.
func (c Charset) Writer(w io.Writer) io.WriteCloser {
	if c.enc == nil {
		return nopCloser{w}
	}
	return transform.NewWriter(w, c.enc.NewEncoder())
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
