package chunker

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Normalize transliterates s to ASCII and replaces double quotes with single
// quotes, so chunk text can be embedded in the quoted prompt lines verbatim.
func Normalize(s string) string {
	return strings.ReplaceAll(unidecode.Unidecode(s), `"`, "'")
}
