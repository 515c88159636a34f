// Package grounding routes a user message to an intent and assembles the
// grounding context handed to the chat model: nearby structured records,
// semantically retrieved document chunks or the latest news.
package grounding

import "strings"

// Intent is the coarse purpose of a user message.
type Intent string

const (
	// IntentProximity asks about hazards around the user's location.
	IntentProximity Intent = "proximity"
	// IntentHowTo asks for preparedness guidance from the document corpus.
	IntentHowTo Intent = "howto"
	// IntentNews asks for recent news and alerts.
	IntentNews Intent = "news"
	// IntentNone matches no keyword set.
	IntentNone Intent = "none"
)

var (
	proximityKeywords = []string{"near me", "nearby", "around me", "my location"}
	howToKeywords     = []string{"how to", "what is", "prepare", "manual", "guide"}
	newsKeywords      = []string{"news", "latest", "alert", "warning"}
)

// Classify returns the first intent whose keywords appear in the lower-cased
// message, checking proximity, then how-to, then news. Proximity only
// matches when the user's location is known; otherwise evaluation continues
// with the next set.
func Classify(message string, hasLocation bool) Intent {
	lower := strings.ToLower(message)
	switch {
	case hasLocation && containsAny(lower, proximityKeywords):
		return IntentProximity
	case containsAny(lower, howToKeywords):
		return IntentHowTo
	case containsAny(lower, newsKeywords):
		return IntentNews
	}
	return IntentNone
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
