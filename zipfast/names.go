package zipfast

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultLegacyEncoding decodes names written without the UTF-8 flag. It is
// the ANSI code page most mission archives were produced under.
var DefaultLegacyEncoding encoding.Encoding = charmap.Windows1252

// LookupEncoding resolves an IANA or common code page name such as
// "windows-1252", "cp437" or "shift_jis". An unknown name yields nil, which
// makes legacy names decode as UTF-8.
func LookupEncoding(name string) encoding.Encoding {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	e, err := ianaindex.IANA.Encoding(name)
	if err != nil || e == nil {
		return nil
	}
	return e
}

// decodeName turns raw name bytes into a string. Flagged names are UTF-8;
// unflagged names go through legacy unless they are plain ASCII.
func decodeName(raw []byte, flags uint16, legacy encoding.Encoding) string {
	if flags&flagUTF8 != 0 || legacy == nil || !requiresDecoding(raw) {
		return string(raw)
	}
	out, err := legacy.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// requiresDecoding reports whether raw holds bytes outside the range every
// supported code page shares with ASCII.
func requiresDecoding(raw []byte) bool {
	for _, c := range raw {
		// Forbid 0x7e and 0x5c since EUC-KR and Shift-JIS replace those
		// characters with localized currency and overline characters.
		if c < 0x20 || c > 0x7d || c == 0x5c {
			return true
		}
	}
	return false
}
