package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var namer = display.English.Languages()

// Normalize canonicalizes a user-supplied language code to its ISO 639-1 base
// ("en-US" -> "en", "eng" -> "en", "English" -> "en" is not attempted).
// Returns empty string for unrecognized input.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// DisplayName returns the English display name for a language code, falling
// back to the code itself when unrecognized. Used in human-readable status
// messages ("Translating from English to Hindi...").
func DisplayName(code string) string {
	normalized := Normalize(code)
	if normalized == "" {
		return code
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return code
	}
	if name := namer.Name(tag); name != "" {
		return name
	}
	return code
}

// Supported lists the language codes with a configured synthesis voice.
var supported = []string{
	"en", "es", "fr", "de", "hi", "zh", "ja", "ko", "ar", "pt",
	"it", "ru", "th", "vi", "tr", "pl", "nl", "sv", "uk", "el", "cs",
}

var supportedSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(supported))
	for _, code := range supported {
		set[code] = struct{}{}
	}
	return set
}()

// IsSupported reports whether a (normalized) language code has a stock voice.
func IsSupported(code string) bool {
	_, ok := supportedSet[Normalize(code)]
	return ok
}

// Supported returns the ordered list of supported language codes.
func Supported() []string {
	cp := make([]string, len(supported))
	copy(cp, supported)
	return cp
}
