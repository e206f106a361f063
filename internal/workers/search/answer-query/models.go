package answerquery

import "search-workers/internal/models"

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	Answer models.SearchAnswer `json:"answer"`
}
