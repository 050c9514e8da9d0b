package transform

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
)

// DefaultLocale is the POSIX locale used when nothing else is configured.
const DefaultLocale = "C"

// ResolveLocale picks the locale a client requests: the explicit value if
// set, then LC_ALL, LC_CTYPE and LANG, then DefaultLocale.
func ResolveLocale(explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return DefaultLocale
}

// IsPOSIX reports whether name selects the C/POSIX locale.
func IsPOSIX(name string) bool {
	switch strings.TrimSpace(name) {
	case "", "C", "POSIX", "C.UTF-8", "C.utf8":
		return true
	}
	return false
}

// ErrUnsupportedCodeset reports a locale whose character set the transform
// cannot uppercase.
var ErrUnsupportedCodeset = errors.New("unsupported locale codeset")

// singleByteCodesets lists the non-UTF-8 codesets served byte for byte.
// Keys are normalised with normalizeCodeset.
var singleByteCodesets = map[string]*charmap.Charmap{
	"iso88591":    charmap.ISO8859_1,
	"iso88592":    charmap.ISO8859_2,
	"iso88595":    charmap.ISO8859_5,
	"iso88597":    charmap.ISO8859_7,
	"iso88599":    charmap.ISO8859_9,
	"iso885915":   charmap.ISO8859_15,
	"koi8r":       charmap.KOI8R,
	"koi8u":       charmap.KOI8U,
	"cp1251":      charmap.Windows1251,
	"cp1252":      charmap.Windows1252,
	"windows1251": charmap.Windows1251,
	"windows1252": charmap.Windows1252,
}

func normalizeCodeset(codeset string) string {
	codeset = strings.ToLower(codeset)
	return strings.NewReplacer("-", "", "_", "").Replace(codeset)
}

// splitLocale breaks "ll_CC.codeset@modifier" into its language part and
// codeset. The modifier is dropped.
func splitLocale(name string) (base, codeset string) {
	base = strings.TrimSpace(name)
	if idx := strings.IndexByte(base, '@'); idx >= 0 {
		base = base[:idx]
	}
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		base, codeset = base[:idx], base[idx+1:]
	}
	return base, codeset
}

// lookupCodeset returns the charmap for codeset, or nil for UTF-8 (and for
// a locale that names no codeset).
func lookupCodeset(codeset string) (*charmap.Charmap, error) {
	key := normalizeCodeset(codeset)
	if key == "" || key == "utf8" {
		return nil, nil
	}
	if cm, ok := singleByteCodesets[key]; ok {
		return cm, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedCodeset, codeset)
}

// ParseLocale converts a POSIX locale name such as "tr_TR.UTF-8@euro" into
// a BCP 47 tag. The C/POSIX locale maps to language.Und. Codesets other than
// UTF-8 and the single-byte sets in singleByteCodesets are rejected.
func ParseLocale(name string) (language.Tag, error) {
	if IsPOSIX(name) {
		return language.Und, nil
	}
	base, codeset := splitLocale(name)
	if _, err := lookupCodeset(codeset); err != nil {
		return language.Und, fmt.Errorf("parse locale %q: %w", name, err)
	}
	tag, err := language.Parse(strings.ReplaceAll(base, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("parse locale %q: %w", name, err)
	}
	return tag, nil
}

// Upper uppercases text under one locale. A value is not safe for
// concurrent use; each session owns its own.
type Upper struct {
	locale string
	posix  bool
	caser  cases.Caser
	// table maps each byte of a single-byte codeset to its uppercase
	// encoding; nil for UTF-8.
	table *[256][]byte
}

// NewUpper prepares an uppercase transform for locale.
func NewUpper(locale string) (*Upper, error) {
	if IsPOSIX(locale) {
		return &Upper{locale: DefaultLocale, posix: true}, nil
	}
	tag, err := ParseLocale(locale)
	if err != nil {
		return nil, err
	}
	_, codeset := splitLocale(locale)
	cm, err := lookupCodeset(codeset)
	if err != nil {
		return nil, err
	}
	u := &Upper{locale: locale, caser: cases.Upper(tag)}
	if cm != nil {
		u.table = byteTable(cm, u.caser)
	}
	return u, nil
}

// byteTable precomputes the uppercase encoding of every byte in cm. A byte
// whose uppercase form is not representable in cm maps to itself.
func byteTable(cm *charmap.Charmap, caser cases.Caser) *[256][]byte {
	var table [256][]byte
	for i := range table {
		b := byte(i)
		table[i] = []byte{b}
		r := cm.DecodeByte(b)
		if r == utf8.RuneError {
			continue
		}
		var out []byte
		ok := true
		for _, ur := range caser.String(string(r)) {
			eb, found := cm.EncodeRune(ur)
			if !found {
				ok = false
				break
			}
			out = append(out, eb)
		}
		if ok && len(out) > 0 {
			table[i] = out
		}
	}
	return &table
}

// Locale returns the locale name the transform was built for.
func (u *Upper) Locale() string { return u.locale }

// Bytes returns the uppercase form of p. The result may be longer than p
// for scripts whose uppercase forms need more bytes.
func (u *Upper) Bytes(p []byte) []byte {
	if u.posix {
		return asciiUpper(p)
	}
	if u.table != nil {
		out := make([]byte, 0, len(p))
		for _, b := range p {
			out = append(out, u.table[b]...)
		}
		return out
	}
	return u.caser.Bytes(p)
}

// asciiUpper mirrors toupper(3) in the C locale: only a-z change.
func asciiUpper(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out
}
