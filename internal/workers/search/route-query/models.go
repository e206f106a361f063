package routequery

import "search-workers/internal/models"

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	Query string      `json:"query"`
	Mode  models.Mode `json:"mode"`
}
