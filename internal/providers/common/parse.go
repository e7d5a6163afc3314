package common

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

const quoteChars = "\"'`“”‘’„‚‛‟"

const (
	minQueryWords    = 3
	maxQueryWords    = 12
	maxCompetitors   = 8
	maxSummaryFields = 5
)

var (
	codeFence       = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	trailingFiller  = regexp.MustCompile(`(?i)\s+(please|exactly|specifically)$`)
	interrogativeRe = regexp.MustCompile(`(?i)^(how|what|when|where|why|which|can|should|do|does|is|are|will)\b`)
	escapedQuotesRe = regexp.MustCompile(`\\["']`)
)

// unwrapJSON strips a surrounding markdown code fence, if present.
func unwrapJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// ParseClassification validates a classifier payload against the expected
// shape. Anything that is not an object with a boolean brandMentioned and
// string-array competitors/sources yields the empty classification.
func ParseClassification(text string) ClassificationOutput {
	empty := ClassificationOutput{Competitors: []string{}, Sources: []string{}}

	var payload map[string]any
	if err := json.Unmarshal([]byte(unwrapJSON(text)), &payload); err != nil || payload == nil {
		return empty
	}

	out := empty
	if v, ok := payload["brandMentioned"]; ok && v != nil {
		b, isBool := v.(bool)
		if !isBool {
			return empty
		}
		out.BrandMentioned = b
	}

	competitors, ok := stringList(payload["competitors"])
	if !ok {
		return empty
	}
	sources, ok := stringList(payload["sources"])
	if !ok {
		return empty
	}
	out.Competitors = competitors
	out.Sources = sources
	return out
}

// stringList accepts a missing value or an array; non-string and blank
// elements are dropped.
func stringList(v any) ([]string, bool) {
	if v == nil {
		return []string{}, true
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, true
}

// ParseCompetitors accepts a JSON array of competitors, a single competitor
// object, or an object with a "competitors" array. Entries missing a name,
// url or category are dropped.
func ParseCompetitors(text string) []models.CompetitorCandidate {
	var raw any
	if err := json.Unmarshal([]byte(unwrapJSON(text)), &raw); err != nil {
		return nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["competitors"].([]any); ok {
			items = list
		} else {
			items = []any{v}
		}
	}

	var out []models.CompetitorCandidate
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := models.CompetitorCandidate{
			Name:     stringField(obj, "name"),
			URL:      stringField(obj, "url"),
			Category: stringField(obj, "category"),
		}
		if c.Name == "" || c.URL == "" || c.Category == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// MergeCompetitors concatenates lists in order, drops case-insensitive name
// duplicates and caps the result at eight entries.
func MergeCompetitors(lists ...[]models.CompetitorCandidate) []models.CompetitorCandidate {
	out := []models.CompetitorCandidate{}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, c := range list {
			key := strings.ToLower(strings.TrimSpace(c.Name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
			if len(out) == maxCompetitors {
				return out
			}
		}
	}
	return out
}

// ParseSiteSummary decodes a summary payload. ok is false when the payload is
// not an object or has no title.
func ParseSiteSummary(text string) (*models.SiteSummary, bool) {
	var out SiteSummaryOutput
	if err := json.Unmarshal([]byte(unwrapJSON(text)), &out); err != nil {
		return nil, false
	}
	if strings.TrimSpace(out.Title) == "" {
		return nil, false
	}
	return &models.SiteSummary{
		Title:       strings.TrimSpace(out.Title),
		Description: strings.TrimSpace(out.Description),
		Features:    capList(out.Features, maxSummaryFields),
		Services:    capList(out.Services, maxSummaryFields),
	}, true
}

func capList(items []string, n int) []string {
	out := []string{}
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == n {
			break
		}
	}
	return out
}

// ParseTopics accepts {"topics": [...]} or a bare array.
func ParseTopics(text string) []models.TopicSeed {
	body := []byte(unwrapJSON(text))

	var wrapped TopicListOutput
	topics := []TopicOutput{}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Topics) > 0 {
		topics = wrapped.Topics
	} else {
		var list []TopicOutput
		if err := json.Unmarshal(body, &list); err == nil {
			topics = list
		}
	}

	var out []models.TopicSeed
	seen := make(map[string]bool)
	for _, t := range topics {
		name := strings.TrimSpace(t.Name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.TopicSeed{Name: name, Description: strings.TrimSpace(t.Description)})
	}
	return out
}

// FallbackTopics returns the generic topic list used when derivation fails.
func FallbackTopics() []models.TopicSeed {
	out := make([]models.TopicSeed, 0, len(fallbackTopics))
	for _, t := range fallbackTopics {
		out = append(out, models.TopicSeed{Name: t.Name, Description: t.Description})
	}
	return out
}

// CleanQuery normalizes a generated search query: surrounding quotes and a
// trailing filler word are removed, the first letter is capitalized and a
// question mark is added to interrogatives.
func CleanQuery(raw string) string {
	q := strings.TrimSpace(raw)
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		q = strings.TrimSpace(q[:i])
	}
	q = escapedQuotesRe.ReplaceAllString(q, "")
	q = strings.Trim(q, quoteChars+" ")
	q = trailingFiller.ReplaceAllString(q, "")
	q = strings.Trim(q, quoteChars+" ")
	if q == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(q)
	q = string(unicode.ToUpper(r)) + q[size:]

	if interrogativeRe.MatchString(q) && !strings.HasSuffix(q, "?") {
		q += "?"
	}
	return q
}

// ValidQuery reports whether q has between three and twelve words.
func ValidQuery(q string) bool {
	n := len(strings.Fields(q))
	return n >= minQueryWords && n <= maxQueryWords
}

// CleanCategory trims a categorization answer down to a short label.
func CleanCategory(raw string) string {
	c := strings.TrimSpace(raw)
	if i := strings.IndexByte(c, '\n'); i >= 0 {
		c = c[:i]
	}
	c = strings.Trim(c, quoteChars+" .")
	return strings.TrimSpace(c)
}
