package translation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Supported is the closed set of language codes every translation map carries.
var Supported = []string{"ru", "en", "tr", "fr", "de", "ar", "gr"}

// Default is the language a plain string input is stored under.
const Default = "en"

// Translations maps a language code to its text.
type Translations map[string]string

func IsSupported(lang string) bool {
	for _, l := range Supported {
		if l == lang {
			return true
		}
	}
	return false
}

// Normalize returns a map holding every supported code. Missing or non-string
// values become "", unknown codes are dropped and non-object input yields a map
// of empty strings.
func Normalize(v any) Translations {
	out := make(Translations, len(Supported))
	for _, l := range Supported {
		out[l] = ""
	}

	switch m := v.(type) {
	case Translations:
		for _, l := range Supported {
			out[l] = m[l]
		}
	case map[string]string:
		for _, l := range Supported {
			out[l] = m[l]
		}
	case map[string]any:
		for _, l := range Supported {
			if s, ok := m[l].(string); ok {
				out[l] = s
			}
		}
	}

	return out
}

// Pick returns the raw value stored for lang, or "" when it is absent or not a
// string. There is no fallback to another language.
func Pick(v any, lang string) string {
	switch m := v.(type) {
	case Translations:
		return m[lang]
	case map[string]string:
		return m[lang]
	case map[string]any:
		if s, ok := m[lang].(string); ok {
			return s
		}
	}
	return ""
}

// Decode turns a stored JSON document into a normalized map. Documents that are
// not objects (legacy plain strings, null, garbage) normalize to empty values.
func Decode(raw []byte) Translations {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return Normalize(nil)
	}
	return Normalize(v)
}

// HasContent reports whether at least one language carries non-blank text.
func HasContent(t Translations) bool {
	for _, l := range Supported {
		if strings.TrimSpace(t[l]) != "" {
			return true
		}
	}
	return false
}

// ParseLang reduces a requested language such as "ru-RU" or "EN_us" to its
// lowercase primary code. An empty string means no language was requested.
func ParseLang(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if i := strings.IndexAny(raw, "-_"); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(raw)
}

// Text is a localized field as it appears in a response: a single string when a
// language was requested, otherwise the full normalized map.
type Text struct {
	single string
	all    Translations
}

// Localize selects the response mode. lang == "" returns every language.
func Localize(t Translations, lang string) Text {
	if lang == "" {
		return Text{all: Normalize(t)}
	}
	return Text{single: Pick(t, lang)}
}

func (t Text) IsSingle() bool { return t.all == nil }

func (t Text) String() string {
	if t.IsSingle() {
		return t.single
	}
	return t.all[Default]
}

func (t Text) Map() Translations { return t.all }

func (t Text) MarshalJSON() ([]byte, error) {
	if t.IsSingle() {
		return json.Marshal(t.single)
	}
	return json.Marshal(t.all)
}

// Input is a translation field as accepted from clients: either a plain string,
// stored under the default language, or an object keyed by language code.
type Input struct {
	set    bool
	values Translations
}

// NewInput builds an Input from an already keyed map.
func NewInput(values Translations) Input {
	return Input{set: true, values: Normalize(values)}
}

// StringInput builds an Input the way a plain JSON string is decoded.
func StringInput(s string) Input {
	return Input{set: true, values: Normalize(Translations{Default: s})}
}

func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*in = Input{}
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch val := v.(type) {
	case string:
		*in = StringInput(val)
	case map[string]any:
		*in = Input{set: true, values: Normalize(val)}
	default:
		return fmt.Errorf("translation must be a string or an object keyed by language")
	}
	return nil
}

// IsSet reports whether the field was present in the request.
func (in Input) IsSet() bool { return in.set }

// Resolve returns the canonical map for persistence.
func (in Input) Resolve() Translations {
	return Normalize(in.values)
}
