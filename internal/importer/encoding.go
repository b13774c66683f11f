package importer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode converts raw statement bytes to text. "auto" keeps valid UTF-8 and
// reads anything else as Windows-1252, the usual encoding of bank exports.
func decode(content []byte, encoding string) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "auto":
		if utf8.Valid(content) {
			return string(content), nil
		}
		return decodeWith(content, charmap.Windows1252)
	case "utf-8", "utf8":
		return string(content), nil
	case "windows-1252", "cp1252":
		return decodeWith(content, charmap.Windows1252)
	case "iso-8859-1", "latin1", "latin-1":
		return decodeWith(content, charmap.ISO8859_1)
	case "iso-8859-15", "latin9":
		return decodeWith(content, charmap.ISO8859_15)
	}
	return "", fmt.Errorf("unsupported encoding %q", encoding)
}

func decodeWith(content []byte, cm *charmap.Charmap) (string, error) {
	r := transform.NewReader(bytes.NewReader(content), cm.NewDecoder())
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", cm, err)
	}
	return string(out), nil
}
