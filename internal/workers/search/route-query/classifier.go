package routequery

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"search-workers/internal/common/errors"
	"search-workers/internal/common/validation"
	"search-workers/internal/models"
)

const (
	// MinQueryLength matches the SearchInput schema.
	MinQueryLength = 5
	// LongQueryThreshold is the rune count above which a query always goes to the web.
	LongQueryThreshold = 50
)

var recentYear = regexp.MustCompile(`\b20(?:2[4-9]|3[0-9])\b`)

// webSignals are the topical patterns that route a query to web evidence.
var webSignals = []*regexp.Regexp{
	// comparison and rankings
	regexp.MustCompile(`\btop[-\s]*\d+\b`),
	regexp.MustCompile(`\bbest\b`),
	regexp.MustCompile(`\brank(?:ing|ings)?\b`),
	regexp.MustCompile(`\bwhich\s+is\s+better\b`),
	regexp.MustCompile(`\b(?:vs|versus)\b`),
	regexp.MustCompile(`\b(?:compare|comparison)\b`),

	// pricing
	regexp.MustCompile(`\b(?:price|prices|pricing|cost|costs|cheapest|cheaper|affordable)\b`),
	regexp.MustCompile(`\bunder\s*\d+(?:\s*k)?\b`),
	regexp.MustCompile(`\p{Sc}\s*\d+`),

	// recency
	regexp.MustCompile(`\b(?:latest|today|now|current)\b`),
	regexp.MustCompile(`\b(?:news|breaking|trending)\b`),
	regexp.MustCompile(`\b(?:released?|launch(?:ed)?|announced?|updated?)\b`),
	regexp.MustCompile(`\b(?:changelog|release\s*notes?)\b`),

	// lifecycle
	regexp.MustCompile(`\b(?:deprecated|eol|end\s*of\s*life|sunset)\b`),
	regexp.MustCompile(`\broadmap\b`),

	// compatibility and setup
	regexp.MustCompile(`\b(?:works\s+with|compatible\s+with|support(?:ed)?\s+on)\b`),
	regexp.MustCompile(`\binstall(?:ation)?\b`),

	// locality
	regexp.MustCompile(`\b(?:near\s+me|nearby)\b`),

	// urls and domains
	regexp.MustCompile(`https?://\S+`),
	regexp.MustCompile(`\.(?:com|org|net|io|edu|gov)\b`),

	// reviews and communities
	regexp.MustCompile(`\b(?:review|reviews|rating|ratings)\b`),
	regexp.MustCompile(`\b(?:reddit|twitter|x\.com|forum)\b`),

	// troubleshooting
	regexp.MustCompile(`\bhow\s+to\s+(?:setup|fix|build|configure)\b`),
	regexp.MustCompile(`\b(?:stuck\s+on|error\s+code)\b`),
}

// ValidateQuery trims the query and rejects it when it is shorter than
// MinQueryLength characters.
func ValidateQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if res := validation.SearchInput.Validate(map[string]interface{}{"query": trimmed}); !res.Valid {
		return "", errors.NewQueryTooShortError(utf8.RuneCountInString(trimmed), MinQueryLength)
	}
	return trimmed, nil
}

// Classify picks the answering mode. It is pure and deterministic.
func Classify(query string) models.Mode {
	normalized := strings.ToLower(strings.TrimSpace(query))

	if utf8.RuneCountInString(normalized) > LongQueryThreshold {
		return models.ModeWeb
	}
	if recentYear.MatchString(normalized) {
		return models.ModeWeb
	}
	for _, re := range webSignals {
		if re.MatchString(normalized) {
			return models.ModeWeb
		}
	}
	return models.ModeDirect
}
