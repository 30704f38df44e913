package classify

import (
	"encoding/json"
	"strings"
)

const classifySystemPrompt = `You sort saved web links into a folder hierarchy.
Respond with JSON only, using this shape:
{"categories": ["Parent > Child"], "results": [{"itemId": "<id>", "categoryPath": "Parent > Child", "confidence": 0.0}]}
Rules:
- Return exactly one result per input item, echoing its id.
- Prefer a path from the provided taxonomy. Invent a new path only when none fits.
- Separate path segments with the delimiter given in the request.
- confidence is a number between 0 and 1.
- Use the sentinel category when an item cannot be classified.
- Learned hints are past user choices for a site; follow them unless the title clearly disagrees.`

type promptPayload struct {
	Delimiter string   `json:"delimiter"`
	Sentinel  string   `json:"sentinel"`
	Taxonomy  []string `json:"taxonomy"`
	Hints     []Hint   `json:"learnedHints,omitempty"`
	Items     []Item   `json:"items"`
}

// BuildPrompt returns the system and user prompts for one chunk of items.
func BuildPrompt(items []Item, req Request) (string, string, error) {
	payload := promptPayload{
		Delimiter: req.Delimiter,
		Sentinel:  req.Sentinel,
		Taxonomy:  req.Taxonomy,
		Hints:     hintsFor(items, req.Hints),
		Items:     items,
	}
	if payload.Taxonomy == nil {
		payload.Taxonomy = []string{}
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", "", err
	}
	return classifySystemPrompt, "Classify these links:\n" + string(encoded), nil
}

// hintsFor keeps hints whose key appears in one of items' URLs.
func hintsFor(items []Item, hints []Hint) []Hint {
	if len(hints) == 0 {
		return nil
	}
	var out []Hint
	for _, h := range hints {
		for _, it := range items {
			if h.MatchKey != "" && strings.Contains(strings.ToLower(it.URL), h.MatchKey) {
				out = append(out, h)
				break
			}
		}
	}
	return out
}
