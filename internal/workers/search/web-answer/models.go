package webanswer

import "search-workers/internal/models"

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	Candidate models.Candidate `json:"candidate"`
}

// synthesisRequest is the human turn handed to the synthesis call.
type synthesisRequest struct {
	Query     string               `json:"query"`
	Summaries []models.PageSummary `json:"summaries"`
}
