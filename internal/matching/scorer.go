package matching

import (
	"math"
	"strings"
)

// Factor weights. They sum to 1.0 and are scaled x100 for the final score.
const (
	weightSkill        = 0.30
	weightInterest     = 0.25
	weightField        = 0.15
	weightExperience   = 0.10
	weightAvailability = 0.10
	weightLocation     = 0.05
	weightSemantic     = 0.05
)

// Reason thresholds on the un-weighted factor values.
const (
	notableSkill        = 0.70
	notableInterest     = 0.70
	notableField        = 0.80
	notableExperience   = 0.90
	notableAvailability = 0.80
	notableLocation     = 0.85
	notableSemantic     = 0.80
)

const maxReasons = 5

// MatchScorer computes a deterministic 0-100 compatibility score between two
// profile snapshots. Pure: no I/O, no randomness; missing data for a factor
// yields that factor's neutral default instead of failing the computation.
type MatchScorer interface {
	Score(a, b *ProfileSnapshot, sctx *ScoreContext) *ScoreResult
}

type scorer struct {
	tables *SynergyTables
}

func NewScorer(tables *SynergyTables) MatchScorer {
	if tables == nil {
		tables = DefaultSynergyTables()
	}
	return &scorer{tables: tables}
}

func (s *scorer) Score(a, b *ProfileSnapshot, sctx *ScoreContext) *ScoreResult {
	if sctx == nil {
		sctx = &ScoreContext{}
	}

	breakdown := ScoreBreakdown{
		SkillMatch:         s.skillScore(a.Skills, b.Skills),
		InterestAlignment:  s.interestScore(a.Interests, b.Interests),
		FieldCompatibility: s.fieldScore(a.Field, b.Field),
		ExperienceMatch:    s.experienceScore(a.Experience, b.Experience),
		AvailabilityMatch:  s.availabilityScore(a.AvailabilityHours, b.AvailabilityHours),
		LocationProximity:  s.locationScore(sctx.DistanceKm),
		SemanticSimilarity: s.semanticScore(pickEmbedding(sctx.EmbeddingA, a), pickEmbedding(sctx.EmbeddingB, b)),
	}

	// Non-located pairs contribute the neutral location value at half weight
	// so absence of coordinates does not bias the ranking.
	locationWeight := weightLocation
	if sctx.DistanceKm == nil {
		locationWeight = weightLocation / 2
	}

	total := breakdown.SkillMatch*weightSkill +
		breakdown.InterestAlignment*weightInterest +
		breakdown.FieldCompatibility*weightField +
		breakdown.ExperienceMatch*weightExperience +
		breakdown.AvailabilityMatch*weightAvailability +
		breakdown.LocationProximity*locationWeight +
		breakdown.SemanticSimilarity*weightSemantic

	score := int(math.Round(total * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &ScoreResult{
		Score:     score,
		Breakdown: breakdown,
		Reasons:   buildReasons(breakdown),
	}
}

// skillScore combines direct overlap (Jaccard) with complementary-skill
// coverage from the adjacency table. Either side having no skills is a
// neutral 0.3 for the whole factor.
func (s *scorer) skillScore(skillsA, skillsB []string) float64 {
	setA := toSet(skillsA)
	setB := toSet(skillsB)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.3
	}

	overlap := jaccard(setA, setB)

	crossPairs := 0
	for sa := range setA {
		for sb := range setB {
			if s.tables.Complementary(sa, sb) {
				crossPairs++
			}
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	complementary := float64(crossPairs) / float64(smaller)
	if complementary > 1.0 {
		complementary = 1.0
	}

	return 0.4*overlap + 0.6*complementary
}

// interestScore is the Jaccard index of interest sets; neutral when either
// side has none.
func (s *scorer) interestScore(interestsA, interestsB []string) float64 {
	setA := toSet(interestsA)
	setB := toSet(interestsB)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.5
	}
	return jaccard(setA, setB)
}

func (s *scorer) fieldScore(fieldA, fieldB string) float64 {
	fieldA = normalizeTerm(fieldA)
	fieldB = normalizeTerm(fieldB)
	if fieldA == "" || fieldB == "" {
		return 0.5
	}
	if w, ok := s.tables.FieldWeight(fieldA, fieldB); ok {
		return w
	}
	if fieldA == fieldB {
		return 0.7
	}
	if strings.Contains(fieldA, fieldB) || strings.Contains(fieldB, fieldA) {
		return 0.6
	}
	return 0.4
}

// experienceScore favors a one-level gap (mentoring pair) slightly over an
// exact peer match.
func (s *scorer) experienceScore(levelA, levelB ExperienceLevel) float64 {
	ordA := levelA.Ordinal()
	ordB := levelB.Ordinal()
	if ordA == 0 || ordB == 0 {
		return 0.5
	}

	d := ordA - ordB
	if d < 0 {
		d = -d
	}
	switch d {
	case 0:
		return 0.9
	case 1:
		return 1.0
	case 2:
		return 0.6
	}
	return 0.3
}

func (s *scorer) availabilityScore(hoursA, hoursB int) float64 {
	if hoursA <= 0 || hoursB <= 0 {
		return 0.5
	}

	diff := float64(hoursA - hoursB)
	if diff < 0 {
		diff = -diff
	}
	max := float64(hoursA)
	if float64(hoursB) > max {
		max = float64(hoursB)
	}
	ratio := diff / max

	switch {
	case ratio < 0.2:
		return 0.95
	case ratio < 0.4:
		return 0.75
	case ratio < 0.6:
		return 0.55
	}
	return 0.35
}

func (s *scorer) locationScore(distanceKm *float64) float64 {
	if distanceKm == nil {
		return 0.5
	}

	switch d := *distanceKm; {
	case d < 5:
		return 1.0
	case d < 15:
		return 0.85
	case d < 30:
		return 0.7
	case d < 50:
		return 0.55
	case d <= 100:
		return 0.35
	}
	return 0.1
}

// semanticScore is the cosine similarity of the two embeddings normalized to
// [0,1]. Missing or mismatched vectors are neutral.
func (s *scorer) semanticScore(embA, embB []float64) float64 {
	if len(embA) == 0 || len(embB) == 0 || len(embA) != len(embB) {
		return 0.5
	}

	var dot, normA, normB float64
	for i := range embA {
		dot += embA[i] * embB[i]
		normA += embA[i] * embA[i]
		normB += embB[i] * embB[i]
	}
	if normA == 0 || normB == 0 {
		return 0.5
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}

// buildReasons emits a note for each notable factor, in factor-weight order,
// capped to the top five.
func buildReasons(b ScoreBreakdown) []string {
	type candidate struct {
		value     float64
		threshold float64
		text      string
	}
	candidates := []candidate{
		{b.SkillMatch, notableSkill, "shared skills and complementary strengths"},
		{b.InterestAlignment, notableInterest, "common interests"},
		{b.FieldCompatibility, notableField, "strong synergy between your fields"},
		{b.ExperienceMatch, notableExperience, "well-matched experience levels"},
		{b.AvailabilityMatch, notableAvailability, "similar weekly availability"},
		{b.LocationProximity, notableLocation, "located close to each other"},
		{b.SemanticSimilarity, notableSemantic, "profiles read alike"},
	}

	var reasons []string
	for _, c := range candidates {
		if c.value >= c.threshold {
			reasons = append(reasons, c.text)
			if len(reasons) == maxReasons {
				break
			}
		}
	}
	return reasons
}

func pickEmbedding(fromCtx []float64, p *ProfileSnapshot) []float64 {
	if len(fromCtx) > 0 {
		return fromCtx
	}
	return p.Embedding
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if n := normalizeTerm(item); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	intersection := 0
	for item := range a {
		if _, ok := b[item]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// HaversineDistanceKm returns the great-circle distance between two points.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
