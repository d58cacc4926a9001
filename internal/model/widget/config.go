package widget

import "time"

// RequiredFields lists the configuration keys that must be present and truthy,
// in the order they are checked.
var RequiredFields = []string{
	"name",
	"logo",
	"icon",
	"primaryColor",
	"secondaryColor",
	"tertiaryColor",
	"opacity",
	"borderRadius",
	"buttonBorderRadius",
	"position",
	"defaultMessage",
	"thinkingTime",
	"ID_chatbot_client",
	"suggestions",
	"responses",
}

// Config is the declarative widget configuration. It is immutable once loaded.
type Config struct {
	Name               string   `json:"name" yaml:"name"`
	Logo               string   `json:"logo" yaml:"logo"`
	Icon               string   `json:"icon" yaml:"icon"`
	PrimaryColor       string   `json:"primaryColor" yaml:"primaryColor"`
	SecondaryColor     string   `json:"secondaryColor" yaml:"secondaryColor"`
	TertiaryColor      string   `json:"tertiaryColor" yaml:"tertiaryColor"`
	Opacity            float64  `json:"opacity" yaml:"opacity"`
	BorderRadius       string   `json:"borderRadius" yaml:"borderRadius"`
	ButtonBorderRadius string   `json:"buttonBorderRadius" yaml:"buttonBorderRadius"`
	Position           string   `json:"position" yaml:"position"`
	DefaultMessage     string   `json:"defaultMessage" yaml:"defaultMessage"`
	ThinkingTime       int      `json:"thinkingTime" yaml:"thinkingTime"` // milliseconds
	ClientID           ClientID `json:"ID_chatbot_client" yaml:"ID_chatbot_client"`
	SuggestionPrompts  []string `json:"suggestions" yaml:"suggestions"`
	Responses          []string `json:"responses" yaml:"responses"`

	suggestions []Suggestion
	index       map[string]int
}

// Suggestion pairs a canned prompt with its fixed reply.
type Suggestion struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// BuildSuggestions folds the parallel suggestions/responses sequences into a
// single prompt-to-response mapping. The sequences must be the same length.
// When a prompt repeats, the first occurrence wins.
func (c *Config) BuildSuggestions() error {
	if len(c.SuggestionPrompts) != len(c.Responses) {
		return ErrSuggestionMismatch
	}

	c.suggestions = make([]Suggestion, 0, len(c.SuggestionPrompts))
	c.index = make(map[string]int, len(c.SuggestionPrompts))
	for i, prompt := range c.SuggestionPrompts {
		if _, seen := c.index[prompt]; seen {
			continue
		}
		c.index[prompt] = len(c.suggestions)
		c.suggestions = append(c.suggestions, Suggestion{Prompt: prompt, Response: c.Responses[i]})
	}
	return nil
}

// Suggestions returns the canned prompts in configured order.
func (c *Config) Suggestions() []Suggestion {
	return append([]Suggestion(nil), c.suggestions...)
}

// CannedResponse looks up text against the configured prompts. The match is
// exact and case-sensitive.
func (c *Config) CannedResponse(text string) (string, bool) {
	i, ok := c.index[text]
	if !ok {
		return "", false
	}
	return c.suggestions[i].Response, true
}

// ThinkingDelay is the simulated delay shown before a canned reply.
func (c *Config) ThinkingDelay() time.Duration {
	if c.ThinkingTime <= 0 {
		return 0
	}
	return time.Duration(c.ThinkingTime) * time.Millisecond
}

// PublicConfig is the part of Config handed to the page script.
type PublicConfig struct {
	Name               string   `json:"name"`
	Logo               string   `json:"logo"`
	Icon               string   `json:"icon"`
	PrimaryColor       string   `json:"primaryColor"`
	SecondaryColor     string   `json:"secondaryColor"`
	TertiaryColor      string   `json:"tertiaryColor"`
	Opacity            float64  `json:"opacity"`
	BorderRadius       string   `json:"borderRadius"`
	ButtonBorderRadius string   `json:"buttonBorderRadius"`
	Position           string   `json:"position"`
	DefaultMessage     string   `json:"defaultMessage"`
	ThinkingTime       int      `json:"thinkingTime"`
	Suggestions        []string `json:"suggestions"`
}

// Public strips canned responses and the backend identifier.
func (c *Config) Public() PublicConfig {
	prompts := make([]string, 0, len(c.suggestions))
	for _, s := range c.suggestions {
		prompts = append(prompts, s.Prompt)
	}

	return PublicConfig{
		Name:               c.Name,
		Logo:               c.Logo,
		Icon:               c.Icon,
		PrimaryColor:       c.PrimaryColor,
		SecondaryColor:     c.SecondaryColor,
		TertiaryColor:      c.TertiaryColor,
		Opacity:            c.Opacity,
		BorderRadius:       c.BorderRadius,
		ButtonBorderRadius: c.ButtonBorderRadius,
		Position:           c.Position,
		DefaultMessage:     c.DefaultMessage,
		ThinkingTime:       c.ThinkingTime,
		Suggestions:        prompts,
	}
}
