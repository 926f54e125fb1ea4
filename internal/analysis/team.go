package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// Sentiment labels for team reviews.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// TeamReviewSummary counts what AnalyzeTeamReview found.
type TeamReviewSummary struct {
	Sentiment             string `json:"sentiment"`
	TopicsIdentified      int    `json:"topics_identified"`
	KeyPointsCount        int    `json:"key_points_count"`
	TechnologiesMentioned int    `json:"technologies_mentioned"`
	StrengthsCount        int    `json:"strengths_count"`
	ConcernsCount         int    `json:"concerns_count"`
}

// TeamAnalysis is the team agent's output for a single review. The agent
// fills in the review row fields before publishing.
type TeamAnalysis struct {
	ReviewID         int64             `json:"review_id,omitempty"`
	TeamMember       string            `json:"team_member,omitempty"`
	CreatedAt        string            `json:"created_at,omitempty"`
	Status           string            `json:"status,omitempty"`
	TextLength       int               `json:"text_length"`
	LineCount        int               `json:"line_count"`
	Sentiment        string            `json:"sentiment"`
	SentimentScores  map[string]int    `json:"sentiment_scores"`
	Topics           []string          `json:"topics"`
	PRNumbers        []string          `json:"pr_numbers"`
	TicketNumbers    []string          `json:"ticket_numbers"`
	Technologies     []string          `json:"technologies"`
	QualityAspects   []string          `json:"quality_aspects"`
	Strengths        []string          `json:"strengths"`
	Concerns         []string          `json:"concerns"`
	ActionItems      []string          `json:"action_items"`
	KeyPoints        []string          `json:"key_points"`
	Summary          string            `json:"summary"`
	SummaryParagraph string            `json:"summary_paragraph"`
	Review           TeamReviewSummary `json:"review"`
}

type keywordGroup struct {
	name     string
	keywords []string
}

var (
	sentimentKeywords = []keywordGroup{
		{SentimentPositive, []string{"great", "excellent", "good", "well", "improved", "success", "happy", "satisfied", "pleased", "solid", "impressive", "outstanding"}},
		{SentimentNegative, []string{"issue", "problem", "concern", "difficult", "challenge", "struggle", "frustrated", "worried", "error", "bug", "broken"}},
		{SentimentNeutral, []string{"update", "status", "progress", "note", "information", "reviewed", "checked"}},
	}

	techKeywords = []string{
		"JWT", "Redis", "Docker", "Kubernetes", "React", "Python", "JavaScript", "TypeScript",
		"FastAPI", "Django", "Flask", "PostgreSQL", "MongoDB", "Git", "GitHub", "CI/CD",
		"API", "REST", "GraphQL", "AWS", "Azure", "GCP", "Jenkins",
		"unit test", "integration test", "pytest", "jest", "SQL", "NoSQL", "authentication",
		"authorization", "rate limiting", "caching", "microservices", "lambda", "serverless",
	}

	qualityKeywords = []keywordGroup{
		{"error handling", []string{"error handling", "exception", "try/catch", "error management"}},
		{"testing", []string{"test", "unit test", "integration test", "coverage", "pytest", "jest"}},
		{"documentation", []string{"documentation", "doc", "readme", "api doc", "comment"}},
		{"code quality", []string{"refactor", "clean code", "best practice", "code review", "type hint"}},
		{"performance", []string{"performance", "optimization", "speed", "efficiency", "latency"}},
		{"security", []string{"security", "vulnerability", "encryption", "authentication", "authorization"}},
	}

	reviewTopics = []string{
		"collaboration", "communication", "deadline", "quality", "process",
		"teamwork", "feedback", "improvement", "blocker", "achievement",
		"code review", "PR review", "technical review", "architecture", "implementation",
	}

	prNumberPattern     = regexp.MustCompile(`(?i)PR\s*#?\s*(\d+)`)
	ticketNumberPattern = regexp.MustCompile(`(?i)(?:ticket|issue|task)\s*#?\s*(\d+)`)
	sentenceSplit       = regexp.MustCompile(`[.!?]+`)

	strengthPatterns = compileAll(
		`(?i)(?:solid|good|excellent|great|impressive|well done|strong)\s+([^.]+?)(?:\.|$)`,
		`(?i)(?:properly|correctly|effectively)\s+([^.]+?)(?:\.|$)`,
		`(?i)(?:clean|clear|comprehensive|thorough)\s+([^.]+?)(?:\.|$)`,
	)
	concernPatterns = compileAll(
		`(?i)(?:concern|issue|problem|forgot|missed|missing|needs?\s+(?:to\s+)?(?:be|improve|fix))\s+([^.]+?)(?:\.|$)`,
		`(?i)(?:could\s+(?:be|use)|should\s+(?:be|use)|would\s+(?:be|benefit))\s+([^.]+?)(?:\.|$)`,
	)
	recommendationPatterns = compileAll(
		`(?i)(?:should|needs?\s+to|must)\s+([^.]+?)(?:\.|$)`,
		`(?i)(?:recommend|suggest|consider)\s+([^.]+?)(?:\.|$)`,
	)
)

const (
	teamItemLimit   = 5
	keyPointMinLen  = 50
	keyPointLimit   = 3
	teamItemMaxLen  = 100
	teamItemMinLen  = 10
	teamExcerptSize = 80
)

// AnalyzeTeamReview scores sentiment and pulls technologies, quality aspects,
// strengths, concerns and recommendations out of a free-text review.
func AnalyzeTeamReview(text string) TeamAnalysis {
	lines := nonEmptyLines(text)
	lower := strings.ToLower(text)

	scores := make(map[string]int, len(sentimentKeywords))
	for _, g := range sentimentKeywords {
		for _, kw := range g.keywords {
			scores[g.name] += strings.Count(lower, kw)
		}
	}
	sentiment := SentimentNeutral
	switch {
	case scores[SentimentPositive] > scores[SentimentNegative]:
		sentiment = SentimentPositive
	case scores[SentimentNegative] > scores[SentimentPositive]:
		sentiment = SentimentNegative
	}

	prNumbers := findGroup(prNumberPattern, text)
	tickets := findGroup(ticketNumberPattern, text)

	var technologies []string
	for _, tech := range techKeywords {
		if strings.Contains(lower, strings.ToLower(tech)) {
			technologies = append(technologies, tech)
		}
	}
	technologies = dedupe(technologies)

	var aspects []string
	for _, g := range qualityKeywords {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				aspects = append(aspects, g.name)
				break
			}
		}
	}

	strengths := captureAll(text, strengthPatterns, teamItemMaxLen, teamItemMinLen)
	concerns := captureAll(text, concernPatterns, teamItemMaxLen, teamItemMinLen)
	actions := captureAll(text, recommendationPatterns, teamItemMaxLen, teamItemMinLen)

	var topics []string
	for _, topic := range reviewTopics {
		if strings.Contains(lower, strings.ToLower(topic)) {
			topics = append(topics, topic)
		}
	}

	var parts []string
	if len(prNumbers) > 0 {
		parts = append(parts, fmt.Sprintf("This team review focuses on PR #%s and provides comprehensive technical feedback.", prNumbers[0]))
	} else {
		parts = append(parts, "This team review provides detailed technical feedback on code and implementation work.")
	}
	switch sentiment {
	case SentimentPositive:
		parts = append(parts, "The review maintains a positive and constructive tone throughout, highlighting both strengths and areas for improvement.")
	case SentimentNegative:
		parts = append(parts, "The review identifies several concerns that require attention, while maintaining a constructive approach to addressing issues.")
	default:
		parts = append(parts, "The review provides a balanced, objective assessment of the work completed.")
	}
	if len(technologies) > 0 {
		parts = append(parts, fmt.Sprintf("Technical implementation involves %s, demonstrating engagement with modern development practices.", strings.Join(first(technologies, 5), ", ")))
	}
	if len(aspects) > 0 {
		parts = append(parts, fmt.Sprintf("The review specifically addresses %s, indicating a thorough code quality assessment.", strings.Join(first(aspects, 3), ", ")))
	}
	switch {
	case len(strengths) == 1:
		parts = append(parts, fmt.Sprintf("A notable strength identified is: %s.", strengths[0]))
	case len(strengths) > 1:
		parts = append(parts, fmt.Sprintf("Key strengths highlighted include: %s.", strings.Join(truncateEach(first(strengths, 2), teamExcerptSize), "; ")))
	}
	switch {
	case len(concerns) == 1:
		parts = append(parts, fmt.Sprintf("The review notes a specific area for improvement: %s.", concerns[0]))
	case len(concerns) > 1:
		parts = append(parts, fmt.Sprintf("Areas requiring attention include: %s.", strings.Join(truncateEach(first(concerns, 2), teamExcerptSize), "; ")))
	}
	if len(actions) > 0 {
		parts = append(parts, fmt.Sprintf("The reviewer provides %d specific recommendation%s for enhancing the implementation.", len(actions), plural(len(actions))))
	}
	paragraph := strings.Join(parts, " ")

	var keyPoints []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if s = strings.TrimSpace(s); runeLen(s) > keyPointMinLen {
			keyPoints = append(keyPoints, s)
		}
	}
	keyPoints = first(keyPoints, keyPointLimit)

	return TeamAnalysis{
		TextLength:       runeLen(text),
		LineCount:        len(lines),
		Sentiment:        sentiment,
		SentimentScores:  scores,
		Topics:           nonNil(topics),
		PRNumbers:        nonNil(prNumbers),
		TicketNumbers:    nonNil(tickets),
		Technologies:     technologies,
		QualityAspects:   nonNil(aspects),
		Strengths:        nonNil(first(strengths, teamItemLimit)),
		Concerns:         nonNil(first(concerns, teamItemLimit)),
		ActionItems:      nonNil(first(actions, teamItemLimit)),
		KeyPoints:        nonNil(keyPoints),
		Summary:          paragraph,
		SummaryParagraph: paragraph,
		Review: TeamReviewSummary{
			Sentiment:             sentiment,
			TopicsIdentified:      len(topics),
			KeyPointsCount:        len(keyPoints),
			TechnologiesMentioned: len(technologies),
			StrengthsCount:        len(strengths),
			ConcernsCount:         len(concerns),
		},
	}
}

// nonNil keeps empty lists as [] in JSON.
func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
