package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	fencedJSONRE  = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	objectRE      = regexp.MustCompile(`\{[\s\S]*\}`)
	arrayStartRE  = regexp.MustCompile(`\[\s*[\{\["]`)
	arrayEndRE    = regexp.MustCompile(`\][^\]]*$`)
)

// ExtractJSON pulls the JSON payload out of raw model text. It tolerates
// markdown code fences, leading/trailing prose, and responses where the JSON
// is an array rather than an object.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSONRE.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := arrayStartRE.FindStringIndex(text); m != nil {
		if end := arrayEndRE.FindStringIndex(text); end != nil && end[0] >= m[0] {
			return strings.TrimSpace(text[m[0] : end[0]+1]), true
		}
	}
	if m := objectRE.FindString(text); m != "" {
		return strings.TrimSpace(m), true
	}
	return "", false
}

// Decode extracts the JSON payload from raw model text and unmarshals it
// into v, applying a best-effort repair pass when the payload has minor
// syntax errors (trailing commas, single quotes, unquoted keys).
func Decode(text string, v any) error {
	payload, ok := ExtractJSON(text)
	if !ok {
		return fmt.Errorf("no JSON payload found in response")
	}

	if err := json.Unmarshal([]byte(payload), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return fmt.Errorf("repair JSON payload: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode repaired JSON payload: %w", err)
	}
	return nil
}
