package quality

import (
	"context"
	"sort"
	"strings"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

// Summarizer turns raw edit observations into short preference statements.
// Implemented by the LLM client; nil falls back to the heuristic extractor.
type Summarizer interface {
	SummarizePreferences(ctx context.Context, observations []string) ([]string, error)
}

type editPattern struct {
	key       string
	statement string
}

// ExtractPreferences synthesizes learned preferences from the edits across a
// deliverable's approved versions, most frequent pattern first. When a
// summarizer is available it refines the raw observations; on any summarizer
// failure the heuristic result stands (best-effort by contract).
func (p Policy) ExtractPreferences(ctx context.Context, versions []model.Version, summarizer Summarizer) []string {
	counts := make(map[string]int)
	order := make(map[string]int)
	var observations []string

	for _, v := range versions {
		if v.Status != model.VersionApproved || v.FinalContent == nil {
			continue
		}
		for _, pat := range detectPatterns(v.DraftContent, *v.FinalContent) {
			if _, seen := counts[pat.key]; !seen {
				order[pat.key] = len(order)
			}
			counts[pat.key]++
			observations = append(observations, pat.statement)
		}
	}
	if len(counts) == 0 {
		return nil
	}

	if summarizer != nil {
		if refined, err := summarizer.SummarizePreferences(ctx, observations); err == nil && len(refined) > 0 {
			return capList(refined, p.MaxPreferences)
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	// Most repeated pattern first; ties resolve by first appearance so the
	// output is stable across refreshes.
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return order[keys[i]] < order[keys[j]]
	})

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, patternStatements[k])
	}
	return capList(result, p.MaxPreferences)
}

var patternStatements = map[string]string{
	"shortens":       "prefers tighter, shorter write-ups",
	"expands":        "expects more detail than drafts provide",
	"reopens":        "rewrites the opening, prefers leading with conclusions",
	"bullets":        "prefers bullet-point structure over prose",
	"prose":          "prefers prose over bullet points",
	"light-touch":    "drafts land close to final, only light polish applied",
	"heavy-rewrites": "routinely rewrites large portions of drafts",
}

// detectPatterns compares one draft/final pair and reports which recurring
// edit behaviors it exhibits.
func detectPatterns(draft, final string) []editPattern {
	if draft == final {
		return []editPattern{{key: "light-touch", statement: patternStatements["light-touch"]}}
	}

	var found []editPattern
	add := func(key string) {
		found = append(found, editPattern{key: key, statement: patternStatements[key]})
	}

	draftLen := len(strings.Fields(draft))
	finalLen := len(strings.Fields(final))
	switch {
	case draftLen > 0 && float64(finalLen) < 0.8*float64(draftLen):
		add("shortens")
	case draftLen > 0 && float64(finalLen) > 1.25*float64(draftLen):
		add("expands")
	}

	if firstParagraph(draft) != firstParagraph(final) {
		add("reopens")
	}

	draftBullets := countBullets(draft)
	finalBullets := countBullets(final)
	if finalBullets > draftBullets {
		add("bullets")
	} else if draftBullets > finalBullets {
		add("prose")
	}

	dist := EditDistance(draft, final)
	if dist >= 0.5 {
		add("heavy-rewrites")
	} else if dist < 0.1 {
		add("light-touch")
	}
	return found
}

func firstParagraph(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func countBullets(s string) int {
	count := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			count++
		}
	}
	return count
}

func capList(list []string, max int) []string {
	if max > 0 && len(list) > max {
		return list[:max]
	}
	return list
}
