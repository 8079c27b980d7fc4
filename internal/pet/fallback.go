package pet

import "strings"

const (
	TreatReply   = "*purrs happily* Thank you for the treat! 😊"
	PlayReply    = "*bounces around excitedly* I love to play! 🐱"
	ContentReply = "*purrs contentedly* 😊"
	CuriousReply = "*looks at you curiously* Meow?"
	DistantReply = "*seems a bit distant* ..."

	TreatBoost = 0.2
	PlayBoost  = 0.15
)

// Fallback answers without a backend. The mood bands look at mood as it was
// before this exchange; the returned delta is for RecordExchange.
func Fallback(text string, mood float64) (string, float64) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "treat"):
		return TreatReply, TreatBoost
	case strings.Contains(lower, "play"):
		return PlayReply, PlayBoost
	case mood > 0.8:
		return ContentReply, 0
	case mood > 0.4:
		return CuriousReply, 0
	default:
		return DistantReply, 0
	}
}
