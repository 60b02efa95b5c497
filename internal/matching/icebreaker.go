package matching

import (
	"errors"
	"fmt"
	"strings"
)

// ConversationStarterGenerator derives icebreaker text from a score
// breakdown. Strictly best effort: a failure here never fails the match.
type ConversationStarterGenerator interface {
	Generate(a, b *ProfileSnapshot, result *ScoreResult) (string, error)
}

type templateStarterGenerator struct{}

func NewConversationStarterGenerator() ConversationStarterGenerator {
	return &templateStarterGenerator{}
}

func (g *templateStarterGenerator) Generate(a, b *ProfileSnapshot, result *ScoreResult) (string, error) {
	if result == nil {
		return "", errors.New("no score breakdown available")
	}

	if shared := sharedTerms(a.Skills, b.Skills); len(shared) > 0 {
		return fmt.Sprintf("You both work with %s — ask how they've been using it lately.", shared[0]), nil
	}
	if shared := sharedTerms(a.Interests, b.Interests); len(shared) > 0 {
		return fmt.Sprintf("You're both into %s. A good place to start the conversation.", shared[0]), nil
	}
	if result.Breakdown.FieldCompatibility >= notableField {
		return fmt.Sprintf("%s and %s teams tend to build great things together. Ask what they're working on.",
			capitalize(a.Field), capitalize(b.Field)), nil
	}

	return "", errors.New("no overlapping signals to build a starter from")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sharedTerms(a, b []string) []string {
	setB := toSet(b)
	var shared []string
	for _, item := range a {
		if _, ok := setB[normalizeTerm(item)]; ok {
			shared = append(shared, normalizeTerm(item))
		}
	}
	return shared
}
