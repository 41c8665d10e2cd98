package detect

import (
	"regexp"
	"strings"
)

var plainASCII = regexp.MustCompile(`^[A-Za-z0-9\s'",.?!-]+$`)

type scriptRange struct {
	lo, hi rune
	lang   string
}

// Priority order matters: kana is checked before CJK ideographs so Japanese
// text mixing both is reported as "ja".
var scripts = []scriptRange{
	{0x0400, 0x04FF, "ru"}, // Cyrillic
	{0x0600, 0x06FF, "ar"}, // Arabic
	{0x3040, 0x30FF, "ja"}, // Hiragana, Katakana
	{0xAC00, 0xD7AF, "ko"}, // Hangul syllables
	{0x4E00, 0x9FFF, "zh"}, // CJK unified ideographs
	{0x0900, 0x097F, "hi"}, // Devanagari
	{0x0980, 0x09FF, "bn"}, // Bengali
	{0x0C00, 0x0C7F, "te"}, // Telugu
	{0x0B80, 0x0BFF, "ta"}, // Tamil
}

// Guess infers a language from Unicode script ranges without any network
// access. It returns nil when the script is not recognized.
func Guess(text string) *string {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}
	if plainASCII.MatchString(s) {
		return ptr("en")
	}
	for _, sr := range scripts {
		if strings.IndexFunc(s, func(r rune) bool { return r >= sr.lo && r <= sr.hi }) >= 0 {
			return ptr(sr.lang)
		}
	}
	return nil
}

func ptr(s string) *string {
	return &s
}
