package retrieval

import (
	"strings"

	"github.com/sandevgo/momentum/internal/core"
)

// The query planner maps a raw query onto retrieval parameters with
// keyword heuristics. Rules are ordered tables so precedence stays
// auditable: the first rule whose keyword appears in the query wins.

type kRule struct {
	keywords []string
	k        int
}

type typeRule struct {
	keywords []string
	types    []string
}

var kRules = []kRule{
	{keywords: []string{"hi", "hello", "thanks", "thank you", "bye", "ok", "okay"}, k: 2},
	{keywords: []string{"explain", "how", "why", "compare", "analyze", "describe", "tell me about"}, k: 7},
}

const defaultK = 5

var typeRules = []typeRule{
	{
		keywords: []string{"skill", "learn", "study", "course", "subject"},
		types:    []string{core.TypeContext, core.TypeOnboarding, core.TypeChat},
	},
	{
		keywords: []string{"plan", "schedule", "task", "todo", "routine", "daily"},
		types:    []string{core.TypePlan, core.TypeContext, core.TypeOnboarding},
	},
	{
		keywords: []string{"name", "call me", "preference", "like", "dislike"},
		types:    []string{core.TypeContext, core.TypeOnboarding},
	},
}

var defaultTypes = []string{core.TypeContext, core.TypeOnboarding}

// Plan derives the result count and allowed memory categories for a query.
// Pure function of the query string, case-insensitive substring matching.
func Plan(query string) (k int, allowedTypes []string) {
	q := strings.ToLower(query)

	k = defaultK
	for _, rule := range kRules {
		if containsAny(q, rule.keywords) {
			k = rule.k
			break
		}
	}

	allowedTypes = defaultTypes
	for _, rule := range typeRules {
		if containsAny(q, rule.keywords) {
			allowedTypes = rule.types
			break
		}
	}

	return k, allowedTypes
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
