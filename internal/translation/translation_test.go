package translation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmptyFillsEveryLanguage(t *testing.T) {
	out := Normalize(map[string]any{})

	require.Len(t, out, len(Supported))
	for _, l := range Supported {
		assert.Equal(t, "", out[l], "language %s", l)
	}
}

func TestNormalizeDropsUnknownCodes(t *testing.T) {
	out := Normalize(map[string]any{"en": "x", "unknown": "y"})

	assert.Equal(t, "x", out["en"])
	_, ok := out["unknown"]
	assert.False(t, ok)
	for _, l := range Supported {
		if l != "en" {
			assert.Equal(t, "", out[l])
		}
	}
}

func TestNormalizeCoercesNonObjects(t *testing.T) {
	for _, in := range []any{nil, "plain", 42, []any{"en"}} {
		out := Normalize(in)
		require.Len(t, out, len(Supported))
		assert.Equal(t, "", out["en"])
	}
}

func TestNormalizeNonStringValues(t *testing.T) {
	out := Normalize(map[string]any{"en": 12, "ru": "привет"})
	assert.Equal(t, "", out["en"])
	assert.Equal(t, "привет", out["ru"])
}

func TestPickHasNoFallback(t *testing.T) {
	m := map[string]any{"en": "x"}

	assert.Equal(t, "", Pick(m, "ru"))
	assert.Equal(t, "x", Pick(m, "en"))
	assert.Equal(t, "", Pick(map[string]any{"en": 1}, "en"))
	assert.Equal(t, "", Pick(nil, "en"))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, "hi", Decode([]byte(`{"en":"hi","xx":"no"}`))["en"])
	assert.Equal(t, "", Decode([]byte(`"legacy string"`))["en"])
	assert.Len(t, Decode(nil), len(Supported))
}

func TestParseLang(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"ru":    "ru",
		"ru-RU": "ru",
		"EN_us": "en",
		" de ":  "de",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLang(in), "input %q", in)
	}
}

func TestLocalizeModes(t *testing.T) {
	tr := Translations{"en": "Hello", "ru": "Привет"}

	single, err := json.Marshal(Localize(tr, "ru"))
	require.NoError(t, err)
	assert.JSONEq(t, `"Привет"`, string(single))

	missing, err := json.Marshal(Localize(tr, "fr"))
	require.NoError(t, err)
	assert.JSONEq(t, `""`, string(missing))

	full, err := json.Marshal(Localize(tr, ""))
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(full, &decoded))
	assert.Len(t, decoded, len(Supported))
	assert.Equal(t, "Hello", decoded["en"])
	assert.Equal(t, "", decoded["gr"])
}

func TestInputUnmarshal(t *testing.T) {
	var body struct {
		Title Input `json:"title"`
		Desc  Input `json:"description"`
		Name  Input `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"title":"First","description":{"ru":"Первый","zz":"?"}}`), &body))

	assert.True(t, body.Title.IsSet())
	assert.Equal(t, "First", body.Title.Resolve()["en"])
	assert.Equal(t, "", body.Title.Resolve()["ru"])

	assert.Equal(t, "Первый", body.Desc.Resolve()["ru"])
	assert.Len(t, body.Desc.Resolve(), len(Supported))

	assert.False(t, body.Name.IsSet())
}

func TestInputRejectsNumbers(t *testing.T) {
	var in Input
	assert.Error(t, json.Unmarshal([]byte(`5`), &in))
}

func TestHasContent(t *testing.T) {
	assert.False(t, HasContent(Normalize(nil)))
	assert.False(t, HasContent(Translations{"en": "   "}))
	assert.True(t, HasContent(Translations{"ar": "مرحبا"}))
}
