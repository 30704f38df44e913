package classify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"linksort/internal/services/llm"
	"linksort/internal/textutil"
)

// Response is a provider payload normalized to one shape.
type Response struct {
	Categories []string
	Results    []ParsedResult
	// Adjusted lists confidence values that were outside 0..1 as given.
	Adjusted []string
}

// ParsedResult is one entry of a normalized response. Index is the item's
// position in the request when the provider answered by position, else -1.
type ParsedResult struct {
	ItemID       string
	Index        int
	CategoryPath string
	Confidence   float64
}

var (
	resultListKeys = []string{"results", "items", "categorizations", "classifications", "assignments"}
	categoryKeys   = []string{"categories", "taxonomy"}
	itemIDKeys     = []string{"itemId", "item_id", "id", "itemID"}
	pathKeys       = []string{"categoryPath", "category_path", "path", "category", "folder"}
	confidenceKeys = []string{"confidence", "score", "probability"}
)

// ParseResponse normalizes the JSON a provider returned. Paths are split and
// rejoined with delimiter so spacing and Unicode form are consistent.
func ParseResponse(raw, delimiter string) (Response, error) {
	payload := llm.ExtractJSON(raw)
	if payload == "" {
		return Response{}, fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}
	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var resp Response
	var entries []any
	switch v := decoded.(type) {
	case []any:
		entries = v
	case map[string]any:
		for _, key := range categoryKeys {
			if list, ok := v[key].([]any); ok {
				for _, c := range list {
					if path := normalizePath(c, delimiter); path != "" {
						resp.Categories = append(resp.Categories, path)
					}
				}
				break
			}
		}
		found := false
		for _, key := range resultListKeys {
			if list, ok := v[key].([]any); ok {
				entries = list
				found = true
				break
			}
		}
		if !found {
			return Response{}, fmt.Errorf("%w: no results list", ErrMalformedResponse)
		}
	default:
		return Response{}, fmt.Errorf("%w: unexpected top-level %T", ErrMalformedResponse, decoded)
	}

	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		r := ParsedResult{Index: -1}
		for _, key := range itemIDKeys {
			if id := scalarString(obj[key]); id != "" {
				r.ItemID = id
				break
			}
		}
		if idx, ok := number(obj["index"]); ok {
			r.Index = int(idx)
		}
		for _, key := range pathKeys {
			if path := normalizePath(obj[key], delimiter); path != "" {
				r.CategoryPath = path
				break
			}
		}
		for _, key := range confidenceKeys {
			if c, ok := number(obj[key]); ok {
				r.Confidence = normalizeConfidence(c)
				if r.Confidence != c {
					resp.Adjusted = append(resp.Adjusted, strconv.FormatFloat(c, 'f', -1, 64))
				}
				break
			}
		}
		if (r.ItemID == "" && r.Index < 0) || r.CategoryPath == "" {
			continue
		}
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

func normalizePath(v any, delimiter string) string {
	var segments []string
	switch value := v.(type) {
	case string:
		segments = textutil.SplitPath(value, delimiter)
	case []any:
		for _, part := range value {
			s, ok := part.(string)
			if !ok {
				continue
			}
			segments = append(segments, textutil.SplitPath(s, delimiter)...)
		}
	default:
		return ""
	}
	if len(segments) == 0 {
		return ""
	}
	return textutil.JoinPath(segments, delimiter)
}

func scalarString(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return ""
}

func number(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "%"), 64)
		if err != nil {
			return 0, false
		}
		if strings.HasSuffix(strings.TrimSpace(value), "%") {
			f /= 100
		}
		return f, true
	}
	return 0, false
}

// normalizeConfidence leaves values in 0..1 untouched. Values up to 100 are
// read as percentages; anything else is clamped.
func normalizeConfidence(c float64) float64 {
	switch {
	case c >= 0 && c <= 1:
		return c
	case c > 1 && c <= 100:
		return c / 100
	case c < 0:
		return 0
	}
	return 1
}
