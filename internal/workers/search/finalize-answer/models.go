package finalizeanswer

import "search-workers/internal/models"

type Input struct {
	Candidate models.Candidate `json:"candidate"`
}

type Output struct {
	Answer models.SearchAnswer `json:"answer"`
}
