package widget

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildSuggestionsPairsByIndex(t *testing.T) {
	cfg := Config{
		SuggestionPrompts: []string{"Hours?", "Price?", "Hours?"},
		Responses:         []string{"9–5", "Free", "ignored"},
	}
	require.NoError(t, cfg.BuildSuggestions())

	require.Equal(t, []Suggestion{
		{Prompt: "Hours?", Response: "9–5"},
		{Prompt: "Price?", Response: "Free"},
	}, cfg.Suggestions())

	got, ok := cfg.CannedResponse("Hours?")
	require.True(t, ok)
	require.Equal(t, "9–5", got)

	_, ok = cfg.CannedResponse("hours?")
	require.False(t, ok)
}

func TestBuildSuggestionsRejectsMismatch(t *testing.T) {
	cfg := Config{SuggestionPrompts: []string{"a", "b"}, Responses: []string{"x"}}
	require.ErrorIs(t, cfg.BuildSuggestions(), ErrSuggestionMismatch)
}

func TestThinkingDelay(t *testing.T) {
	require.Equal(t, 1500*time.Millisecond, (&Config{ThinkingTime: 1500}).ThinkingDelay())
	require.Zero(t, (&Config{ThinkingTime: -3}).ThinkingDelay())
}

func TestPublicHidesResponsesAndClientID(t *testing.T) {
	cfg := Config{
		Name:              "Acme",
		ClientID:          NewClientID("secret-client"),
		SuggestionPrompts: []string{"Hours?"},
		Responses:         []string{"9–5"},
	}
	require.NoError(t, cfg.BuildSuggestions())

	raw, err := json.Marshal(cfg.Public())
	require.NoError(t, err)
	require.Contains(t, string(raw), `"suggestions":["Hours?"]`)
	require.NotContains(t, string(raw), "9–5")
	require.NotContains(t, string(raw), "secret-client")
}

func TestValidateRequiredNamesFirstMissingField(t *testing.T) {
	doc := completeDocument()
	delete(doc, "icon")
	doc["position"] = ""

	err := ValidateRequired(doc)
	require.ErrorIs(t, err, ErrMissingField)

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "icon", missing.Field)
	require.Contains(t, err.Error(), "icon")
}

func TestValidateRequiredFalsyValues(t *testing.T) {
	for _, value := range []any{nil, false, "", 0.0, 0} {
		doc := completeDocument()
		doc["opacity"] = value

		var missing *MissingFieldError
		require.True(t, errors.As(ValidateRequired(doc), &missing), "value %#v", value)
		require.Equal(t, "opacity", missing.Field)
	}
}

func TestValidateRequiredAcceptsEmptySequences(t *testing.T) {
	doc := completeDocument()
	doc["suggestions"] = []any{}
	doc["responses"] = []any{}
	require.NoError(t, ValidateRequired(doc))
}

func TestClientIDKeepsJSONType(t *testing.T) {
	var numeric, text ClientID
	require.NoError(t, json.Unmarshal([]byte(`42`), &numeric))
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &text))

	out, err := json.Marshal(map[string]ClientID{"n": numeric, "s": text})
	require.NoError(t, err)
	require.JSONEq(t, `{"n":42,"s":"abc"}`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{}`), &numeric))
}

func TestClientIDFromYAML(t *testing.T) {
	var doc struct {
		N ClientID `yaml:"n"`
		S ClientID `yaml:"s"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("n: 7\ns: \"7\"\n"), &doc))

	out, err := json.Marshal([]ClientID{doc.N, doc.S})
	require.NoError(t, err)
	require.JSONEq(t, `[7,"7"]`, string(out))
}

func completeDocument() map[string]any {
	return map[string]any{
		"name":               "Acme",
		"logo":               "logo.png",
		"icon":               "icon.png",
		"primaryColor":       "#112233",
		"secondaryColor":     "#445566",
		"tertiaryColor":      "#778899",
		"opacity":            0.9,
		"borderRadius":       "12px",
		"buttonBorderRadius": "50%",
		"position":           "bottom-right",
		"defaultMessage":     "Hello!",
		"thinkingTime":       800.0,
		"ID_chatbot_client":  "client-1",
		"suggestions":        []any{"Hours?"},
		"responses":          []any{"9–5"},
	}
}
