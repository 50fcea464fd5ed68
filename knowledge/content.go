package knowledge

import (
	"github.com/mitchellh/mapstructure"

	"github.com/aixlab/aix/errors"
)

type (
	// Fact is a plain statement of knowledge.
	Fact struct {
		Text string `mapstructure:"text" json:"text"`
	}

	// QA is a stored question with its answer. The question doubles as the
	// direct-match key during resolution.
	QA struct {
		Question string `mapstructure:"question" json:"question"`
		Answer   string `mapstructure:"answer" json:"answer"`
	}

	// Procedure is a named sequence of steps.
	Procedure struct {
		Name  string   `mapstructure:"name" json:"name"`
		Steps []string `mapstructure:"steps" json:"steps"`
	}

	// Condition is a single rule predicate. Op is one of intent_is,
	// query_contains, context_has_kind, context_missing_kind,
	// context_has_keyword.
	Condition struct {
		Op    string `mapstructure:"op" json:"op"`
		Value string `mapstructure:"value" json:"value"`
	}

	// Action is what a matched rule does: "respond" emits Value directly,
	// "fetch_fact" pulls an extra fact matching Keyword.
	Action struct {
		Type    string `mapstructure:"type" json:"type"`
		Value   string `mapstructure:"value,omitempty" json:"value,omitempty"`
		Keyword string `mapstructure:"keyword,omitempty" json:"keyword,omitempty"`
	}

	// Rule couples conditions with an action. Match is "all" or "any".
	Rule struct {
		Name       string      `mapstructure:"name" json:"name"`
		Priority   int         `mapstructure:"priority" json:"priority"`
		Match      string      `mapstructure:"match" json:"match"`
		Conditions []Condition `mapstructure:"conditions" json:"conditions"`
		Action     Action      `mapstructure:"action" json:"action"`
	}

	// RuleSet groups rules under lookup keywords.
	RuleSet struct {
		Keywords []string `mapstructure:"keywords" json:"keywords"`
		Rules    []Rule   `mapstructure:"rules" json:"rules"`
	}

	// HypothesisTemplate produces a tentative answer when its trigger
	// conditions hold and nothing authoritative matched.
	HypothesisTemplate struct {
		Keywords []string    `mapstructure:"keywords" json:"keywords"`
		Trigger  []Condition `mapstructure:"trigger" json:"trigger"`
		Match    string      `mapstructure:"match" json:"match"`
		Template string      `mapstructure:"template" json:"template"`
	}

	// ResponseTemplate shapes the final answer text for a result kind.
	ResponseTemplate struct {
		Name        string   `mapstructure:"name" json:"name"`
		Body        string   `mapstructure:"body" json:"body"`
		ResultKinds []string `mapstructure:"result_kinds" json:"result_kinds"`
		Tags        []string `mapstructure:"tags" json:"tags"`
	}

	// ConfigEntry is a runtime setting stored as data.
	ConfigEntry struct {
		Name  string `mapstructure:"name" json:"name"`
		Value any    `mapstructure:"value" json:"value"`
	}
)

// DecodeContent decodes a stored JSON payload into one of the typed content
// variants above.
func DecodeContent(payload map[string]any, out any) error {
	if err := mapstructure.Decode(payload, out); err != nil {
		return errors.Wrapf(err, "failed to decode content payload")
	}
	return nil
}
