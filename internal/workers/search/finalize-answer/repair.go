package finalizeanswer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// extractObject returns the first balanced {...} span of text, skipping
// braces inside JSON strings. An unterminated object is returned from its
// opening brace to the end so the tolerant parser can close it.
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return text[start:], true
}

// parseObject decodes the model's repair reply. Anything that cannot be read
// as a JSON object yields an empty object.
func parseObject(text string) map[string]interface{} {
	span, ok := extractObject(text)
	if !ok {
		return map[string]interface{}{}
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(span), &obj); err == nil && obj != nil {
		return obj
	}

	fixed, err := jsonrepair.JSONRepair(span)
	if err != nil {
		return map[string]interface{}{}
	}
	obj = nil
	if err := json.Unmarshal([]byte(fixed), &obj); err != nil || obj == nil {
		return map[string]interface{}{}
	}
	return obj
}

// coerce maps a loosely typed object onto answer and sources.
func coerce(obj map[string]interface{}) (string, []string) {
	answer := ""
	if v, ok := obj["answer"]; ok && v != nil {
		answer = stringify(v)
	}

	sources := []string{}
	if list, ok := obj["sources"].([]interface{}); ok {
		for _, item := range list {
			sources = append(sources, stringify(item))
		}
	}
	return strings.TrimSpace(answer), sources
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
