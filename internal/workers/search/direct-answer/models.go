package directanswer

import "search-workers/internal/models"

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	Candidate models.Candidate `json:"candidate"`
}
