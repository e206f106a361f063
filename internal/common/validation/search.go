package validation

// Schemas for the search answer pipeline.
var (
	SearchInput = MustCompile("SearchInput", `{
		"type": "object",
		"required": ["query"],
		"properties": {
			"query": {"type": "string", "minLength": 5}
		}
	}`)

	EvidenceResult = MustCompile("EvidenceResult", `{
		"type": "object",
		"required": ["title", "url"],
		"properties": {
			"title":   {"type": "string", "minLength": 1},
			"url":     {"type": "string", "format": "uri"},
			"snippet": {"type": "string"}
		}
	}`)

	OpenedPage = MustCompile("OpenedPage", `{
		"type": "object",
		"required": ["url", "content"],
		"properties": {
			"url":     {"type": "string", "format": "uri"},
			"content": {"type": "string", "minLength": 1}
		}
	}`)

	PageSummary = MustCompile("PageSummary", `{
		"type": "object",
		"required": ["url", "summary"],
		"properties": {
			"url":     {"type": "string", "format": "uri"},
			"summary": {"type": "string", "minLength": 1}
		}
	}`)

	SearchAnswer = MustCompile("SearchAnswer", `{
		"type": "object",
		"required": ["answer", "sources"],
		"properties": {
			"answer":  {"type": "string", "minLength": 1, "pattern": "\\S"},
			"sources": {
				"type": "array",
				"items": {"type": "string", "format": "uri"}
			}
		}
	}`)
)
