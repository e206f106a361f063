package models

// Mode is the answering strategy chosen for a query.
type Mode string

const (
	ModeWeb    Mode = "web"
	ModeDirect Mode = "direct"
)

// FallbackState records which degradation path produced the page summaries
// handed to synthesis.
type FallbackState string

const (
	FallbackNone      FallbackState = "none"
	FallbackSnippets  FallbackState = "snippets"
	FallbackNoResults FallbackState = "no-results"
)

// EvidenceResult is one search hit.
type EvidenceResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// OpenedPage is the readable text of a fetched URL.
type OpenedPage struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// PageSummary is the condensed content of one page, or its snippet when no
// page could be opened.
type PageSummary struct {
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// Candidate is a strategy's unvalidated answer.
type Candidate struct {
	Answer   string        `json:"answer"`
	Sources  []string      `json:"sources"`
	Mode     Mode          `json:"mode"`
	Fallback FallbackState `json:"fallback,omitempty"`
}

// SearchAnswer is the validated, public answer.
type SearchAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Mode    Mode     `json:"mode"`
}
