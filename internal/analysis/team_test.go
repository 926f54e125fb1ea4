package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const review = "Great work on PR #42. The JWT authentication is solid and well tested. " +
	"You should add more integration tests for the Redis cache layer."

func TestAnalyzeTeamReview(t *testing.T) {
	a := AnalyzeTeamReview(review)

	assert.Equal(t, SentimentPositive, a.Sentiment)
	assert.Equal(t, []string{"42"}, a.PRNumbers)
	assert.Empty(t, a.TicketNumbers)
	assert.Contains(t, a.Technologies, "JWT")
	assert.Contains(t, a.Technologies, "Redis")
	assert.Contains(t, a.QualityAspects, "testing")
	assert.Contains(t, a.QualityAspects, "security")
	assert.Contains(t, a.Strengths, "work on PR #42")
	assert.Equal(t, []string{"add more integration tests for the Redis cache layer"}, a.ActionItems)
	assert.Contains(t, a.Summary, "This team review focuses on PR #42")
	assert.Contains(t, a.Summary, "The reviewer provides 1 specific recommendation for enhancing the implementation.")
	assert.Equal(t, a.Summary, a.SummaryParagraph)
	assert.Equal(t, len(a.Technologies), a.Review.TechnologiesMentioned)
}

func TestTeamReviewSentiment(t *testing.T) {
	tests := map[string]string{
		"Status update only.": SentimentNeutral,
		"There is a bug and a problem with the broken build.": SentimentNegative,
		"Good work, but one issue remains.":                   SentimentNeutral,
		"Excellent and impressive delivery.":                  SentimentPositive,
	}
	for text, want := range tests {
		assert.Equal(t, want, AnalyzeTeamReview(text).Sentiment, text)
	}
}

func TestTeamReviewKeyPoints(t *testing.T) {
	text := "Short one. This sentence is comfortably longer than fifty characters in total! Tiny?"
	a := AnalyzeTeamReview(text)
	assert.Equal(t, []string{"This sentence is comfortably longer than fifty characters in total"}, a.KeyPoints)
	assert.NotNil(t, a.Concerns)
}
