package scraper

import (
	"bytes"
	"io"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// DecodeHTML returns a UTF-8 reader over body. The encoding comes from a
// byte-order mark, the charset parameter of contentType, or a <meta>
// declaration in the first 1024 bytes. Undeclared non-UTF-8 content is
// read as windows-1252, as browsers do.
func DecodeHTML(body []byte, contentType string) io.Reader {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc == nil || name == "utf-8" {
		return bytes.NewReader(body)
	}
	return transform.NewReader(bytes.NewReader(body), enc.NewDecoder())
}
