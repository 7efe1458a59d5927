package chain

import (
	"strings"

	"github.com/trc8004/m2m-go/pkg/errdefs"
)

// Sentiment is the on-chain feedback sentiment enum.
type Sentiment uint8

const (
	SentimentNeutral  Sentiment = 0
	SentimentPositive Sentiment = 1
	SentimentNegative Sentiment = 2
)

// ParseSentiment maps a sentiment string to its on-chain code.
func ParseSentiment(s string) (Sentiment, error) {
	switch strings.ToLower(s) {
	case "neutral":
		return SentimentNeutral, nil
	case "positive":
		return SentimentPositive, nil
	case "negative":
		return SentimentNegative, nil
	default:
		return 0, errdefs.NewValidation("invalid sentiment, must be positive/neutral/negative", s)
	}
}

// String returns the sentiment name used by the backend API.
func (s Sentiment) String() string {
	switch s {
	case SentimentPositive:
		return "positive"
	case SentimentNegative:
		return "negative"
	default:
		return "neutral"
	}
}
