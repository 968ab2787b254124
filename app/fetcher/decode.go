package fetcher

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// decode converts raw response bytes to UTF-8 text. The charset is taken
// from the Content-Type header when declared, then from the source
// profile's expected encoding, then from a content sniff. Mis-decoding
// here silently corrupts every downstream field, so the sniff is a last
// resort, not the default.
func decode(raw []byte, contentType, expected string) (string, error) {
	name := charsetFromContentType(contentType)
	if name == "" {
		name = expected
	}
	if name == "" {
		name = sniffCharset(raw)
	}

	if name == "" || strings.EqualFold(name, "utf-8") {
		return string(raw), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		// Unknown label: try the sniffer before giving up.
		if sniffed := sniffCharset(raw); sniffed != "" && !strings.EqualFold(sniffed, name) {
			if enc, err = htmlindex.Get(sniffed); err != nil {
				return "", fmt.Errorf("unsupported charset %q: %w", name, err)
			}
		} else {
			return "", fmt.Errorf("unsupported charset %q: %w", name, err)
		}
	}

	if enc == unicode.UTF8 {
		return string(raw), nil
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("charset %q decode failed: %w", name, err)
	}

	return string(decoded), nil
}

func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func sniffCharset(raw []byte) string {
	result, err := chardet.NewHtmlDetector().DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return result.Charset
}
