package fetcher

import (
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeBody converts a response body to UTF-8 using the charset declared
// in the Content-Type header. Bodies with no declared charset (or already
// UTF-8) pass through untouched.
func decodeBody(raw []byte, contentType string) (string, error) {
	charset := ""
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			charset = strings.ToLower(params["charset"])
		}
	}
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(raw), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: unsupported charset %q", charset)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: decode %s body", charset)
	}
	if !utf8.Valid(decoded) {
		return "", eris.Errorf("fetcher: %s body did not decode to valid UTF-8", charset)
	}
	return string(decoded), nil
}
