package scan

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// decode returns data as UTF-8 text. Valid UTF-8 passes through with any
// byte-order mark removed; anything else is decoded from the detected
// charset.
func decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}

	best, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	r, err := charset.NewReaderLabel(best.Charset, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported charset %s: %w", best.Charset, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", best.Charset, err)
	}
	if !utf8.Valid(out) {
		return "", fmt.Errorf("content is not valid %s", best.Charset)
	}
	return strings.TrimPrefix(string(out), "\ufeff"), nil
}
