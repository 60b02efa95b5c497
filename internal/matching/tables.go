package matching

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// SynergyTables holds the static lookup data the scorer consults: which
// skills complement each other, and how strongly two professional fields
// collaborate. Kept as loadable data so the tables can be tuned without
// redeploying the scoring logic.
type SynergyTables struct {
	// SkillAdjacency lists, per skill, the skills considered complementary
	// to it. Lookups check both directions.
	SkillAdjacency map[string][]string `json:"skill_adjacency"`

	// FieldSynergy assigns an unordered field pair a weight in [0,1].
	FieldSynergy []FieldSynergy `json:"field_synergy"`

	fieldIndex map[string]float64
}

// FieldSynergy is one unordered field-pair entry.
type FieldSynergy struct {
	FieldA string  `json:"field_a"`
	FieldB string  `json:"field_b"`
	Weight float64 `json:"weight"`
}

// DefaultSynergyTables returns the compiled-in tables used when no external
// file is configured.
func DefaultSynergyTables() *SynergyTables {
	t := &SynergyTables{
		SkillAdjacency: map[string][]string{
			"react":            {"node", "go", "graphql", "figma"},
			"typescript":       {"node", "react", "go"},
			"vue":              {"node", "go", "graphql"},
			"node":             {"react", "vue", "postgres", "aws"},
			"go":               {"react", "vue", "kubernetes", "postgres"},
			"python":           {"data-science", "machine-learning", "sql"},
			"machine-learning": {"python", "data-engineering", "product"},
			"data-science":     {"python", "sql", "product"},
			"figma":            {"react", "vue", "frontend"},
			"ui-design":        {"frontend", "react", "product"},
			"product":          {"ui-design", "data-science", "marketing"},
			"marketing":        {"product", "copywriting", "seo"},
			"devops":           {"go", "kubernetes", "aws"},
			"kubernetes":       {"go", "devops", "aws"},
			"sql":              {"python", "data-science"},
		},
		FieldSynergy: []FieldSynergy{
			{FieldA: "engineering", FieldB: "design", Weight: 0.90},
			{FieldA: "engineering", FieldB: "product", Weight: 0.88},
			{FieldA: "engineering", FieldB: "data science", Weight: 0.85},
			{FieldA: "design", FieldB: "product", Weight: 0.92},
			{FieldA: "design", FieldB: "marketing", Weight: 0.82},
			{FieldA: "product", FieldB: "marketing", Weight: 0.85},
			{FieldA: "data science", FieldB: "product", Weight: 0.80},
			{FieldA: "engineering", FieldB: "marketing", Weight: 0.80},
		},
	}
	t.buildIndex()
	return t
}

// LoadSynergyTables reads tables from a JSON file.
func LoadSynergyTables(path string) (*SynergyTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synergy tables: %w", err)
	}

	var t SynergyTables
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse synergy tables: %w", err)
	}
	if t.SkillAdjacency == nil {
		t.SkillAdjacency = map[string][]string{}
	}
	t.buildIndex()
	return &t, nil
}

func (t *SynergyTables) buildIndex() {
	t.fieldIndex = make(map[string]float64, len(t.FieldSynergy))
	for _, fs := range t.FieldSynergy {
		t.fieldIndex[fieldPairKey(fs.FieldA, fs.FieldB)] = fs.Weight
	}
}

// FieldWeight looks up the synergy weight for an unordered field pair.
func (t *SynergyTables) FieldWeight(a, b string) (float64, bool) {
	w, ok := t.fieldIndex[fieldPairKey(a, b)]
	return w, ok
}

// Complementary reports whether two skills are listed as complementary,
// in either direction.
func (t *SynergyTables) Complementary(a, b string) bool {
	a = normalizeTerm(a)
	b = normalizeTerm(b)
	for _, s := range t.SkillAdjacency[a] {
		if normalizeTerm(s) == b {
			return true
		}
	}
	for _, s := range t.SkillAdjacency[b] {
		if normalizeTerm(s) == a {
			return true
		}
	}
	return false
}

func fieldPairKey(a, b string) string {
	a = normalizeTerm(a)
	b = normalizeTerm(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
