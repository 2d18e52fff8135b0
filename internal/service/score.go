package service

import (
	"regexp"
	"strconv"
)

// Patterns tried in order when reading a score out of model prose.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*SCORE:\s*(\d{1,3})`),
	regexp.MustCompile(`(?i)score\s*[:=]\s*(\d{1,3})`),
	regexp.MustCompile(`\b(\d{1,3})\s*/\s*100\b`),
}

var scoreLine = regexp.MustCompile(`(?m)^\s*SCORE:\s*\d{1,3}\s*$`)

// ParseScore extracts a 0..100 score from free text. ok is false when no pattern matched.
func ParseScore(text string) (score int, ok bool) {
	for _, pattern := range scorePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		return min(max(value, 0), 100), true
	}
	return 0, false
}

// BlendScore weighs the test score at 60% and the model's assessment at 40%.
func BlendScore(testScore, aiScore int) int {
	return (6*testScore + 4*aiScore + 5) / 10
}

// stripScoreLine removes the trailing machine-readable score from feedback prose.
func stripScoreLine(text string) string {
	return scoreLine.ReplaceAllString(text, "")
}
