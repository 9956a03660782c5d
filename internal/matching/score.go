package matching

import (
	"math"
	"strings"
)

// Factor maxima for the weighted compatibility score. Role complementarity is
// a hard requirement: equal roles force the total to zero.
const (
	maxRolePoints       = 100
	maxSkillPoints      = 50
	maxTopicPoints      = 40
	maxExperiencePoints = 30
	maxDomainPoints     = 25
	maxTypePoints       = 20
	maxDurationPoints   = 15
	maxDifficultyPoints = 10

	// ViableThreshold is the minimum compatibility percentage for a pair to
	// be considered at all.
	ViableThreshold = 50.0

	requiredSkillPoints = 10
	keywordPoints       = 2
	experienceFitPoints = 15
)

// theoreticalMax is the sum of every factor maximum.
const theoreticalMax = maxRolePoints + maxSkillPoints + maxTopicPoints +
	maxExperiencePoints + maxDomainPoints + maxTypePoints + maxDurationPoints +
	maxDifficultyPoints

// ScoreBreakdown records the points each factor contributed.
type ScoreBreakdown struct {
	RoleComplementarity     float64 `json:"roleCompatibility"`
	SkillOverlap            float64 `json:"skillIntersection"`
	TopicOverlap            float64 `json:"topicIntersection"`
	ExperienceCompatibility float64 `json:"experienceCompatibility"`
	DomainOverlap           float64 `json:"domainIntersection"`
	InterviewTypeMatch      float64 `json:"interviewTypeMatch"`
	DurationCloseness       float64 `json:"durationCompatibility"`
	DifficultyMatch         float64 `json:"difficultyMatch"`
}

// AsMap flattens the breakdown for transport to clients.
func (b ScoreBreakdown) AsMap() map[string]float64 {
	return map[string]float64{
		"roleCompatibility":       b.RoleComplementarity,
		"skillIntersection":       b.SkillOverlap,
		"topicIntersection":       b.TopicOverlap,
		"experienceCompatibility": b.ExperienceCompatibility,
		"domainIntersection":      b.DomainOverlap,
		"interviewTypeMatch":      b.InterviewTypeMatch,
		"durationCompatibility":   b.DurationCloseness,
		"difficultyMatch":         b.DifficultyMatch,
	}
}

// Score is the result of evaluating one candidate pair.
type Score struct {
	Raw        float64        `json:"raw"`
	Max        float64        `json:"max"`
	Percentage float64        `json:"percentage"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
}

// Viable reports whether the pair clears the minimum compatibility threshold.
func (s Score) Viable() bool {
	return s.Percentage >= ViableThreshold
}

// Compatibility computes the weighted compatibility score between two
// participants. It is a pure function: no shared state, deterministic, and
// symmetric in its arguments. Equal roles are a hard mismatch and short-
// circuit every other factor.
func Compatibility(a, b *Participant) Score {
	if a.Preferences.Role == b.Preferences.Role {
		return Score{Raw: 0, Max: theoreticalMax, Percentage: 0}
	}

	breakdown := ScoreBreakdown{
		RoleComplementarity: maxRolePoints,
		SkillOverlap:        skillOverlap(a, b),
		TopicOverlap:        topicOverlap(a, b),
		ExperienceCompatibility: experienceCompatibility(
			a.Profile.ExperienceYears, b.Profile.ExperienceYears,
			a.Preferences.Experience, b.Preferences.Experience,
		),
		DomainOverlap:     domainOverlap(a.Profile.Domains, b.Profile.Domains),
		DurationCloseness: durationCloseness(a.Preferences.DurationMinutes, b.Preferences.DurationMinutes),
	}
	if a.Preferences.InterviewType == b.Preferences.InterviewType {
		breakdown.InterviewTypeMatch = maxTypePoints
	}
	if a.Preferences.Difficulty == b.Preferences.Difficulty {
		breakdown.DifficultyMatch = maxDifficultyPoints
	}

	raw := breakdown.RoleComplementarity + breakdown.SkillOverlap +
		breakdown.TopicOverlap + breakdown.ExperienceCompatibility +
		breakdown.DomainOverlap + breakdown.InterviewTypeMatch +
		breakdown.DurationCloseness + breakdown.DifficultyMatch

	return Score{
		Raw:        raw,
		Max:        theoreticalMax,
		Percentage: raw / theoreticalMax * 100,
		Breakdown:  breakdown,
	}
}

// Reasons derives short human-readable explanations from the breakdown for
// display alongside a match proposal.
func (s Score) Reasons() []string {
	var reasons []string
	if s.Breakdown.SkillOverlap > 30 {
		reasons = append(reasons, "Strong skill overlap")
	}
	if s.Breakdown.TopicOverlap > 20 {
		reasons = append(reasons, "Shared interview topics")
	}
	if s.Breakdown.ExperienceCompatibility > 20 {
		reasons = append(reasons, "Compatible experience levels")
	}
	if s.Breakdown.DomainOverlap > 15 {
		reasons = append(reasons, "Similar domain expertise")
	}
	if s.Breakdown.InterviewTypeMatch > 0 {
		reasons = append(reasons, "Same interview type preference")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Good overall compatibility")
	}
	return reasons
}

// skillOverlap scores required-skill matches plus free-text keyword
// intersection, normalized to maxSkillPoints. Both directions of the
// required-skill check contribute, keeping the factor symmetric.
func skillOverlap(a, b *Participant) float64 {
	var earned, possible float64

	earned += requiredSkillScore(a.Preferences.RequiredSkills, b.Profile.Skills, &possible)
	earned += requiredSkillScore(b.Preferences.RequiredSkills, a.Profile.Skills, &possible)

	aKeywords := profileKeywords(a.Profile.Skills)
	bKeywords := profileKeywords(b.Profile.Skills)
	larger := len(aKeywords)
	if len(bKeywords) > larger {
		larger = len(bKeywords)
	}
	possible += float64(larger * keywordPoints)
	earned += float64(intersectionCount(aKeywords, bKeywords) * keywordPoints)

	if possible == 0 {
		return 0
	}
	return math.Min(maxSkillPoints, earned/possible*maxSkillPoints)
}

// requiredSkillScore awards points for each required skill the other side's
// profile satisfies at a compatible level (within one ladder step).
func requiredSkillScore(required []SkillRequirement, skills []Skill, possible *float64) float64 {
	var earned float64
	for _, req := range required {
		*possible += requiredSkillPoints
		for _, skill := range skills {
			if strings.EqualFold(skill.Name, req.Name) && levelsCompatible(skill.Level, req.Level) {
				earned += requiredSkillPoints
				break
			}
		}
	}
	return earned
}

// levelsCompatible reports whether two levels are within one step of each
// other on the four-point ladder.
func levelsCompatible(a, b SkillLevel) bool {
	ia, aok := skillLevelIndex[a]
	ib, bok := skillLevelIndex[b]
	if !aok || !bok {
		return false
	}
	diff := ia - ib
	return diff >= -1 && diff <= 1
}

// topicOverlap is the Jaccard similarity of the two sides' topic sets scaled
// to maxTopicPoints. A topic set is the union of declared preferred topics
// and profile interests. If either side's excluded topics intersect the
// other's set, the factor is forced to zero.
func topicOverlap(a, b *Participant) float64 {
	aTopics := lowerSet(append(append([]string{}, a.Preferences.PreferredTopics...), a.Profile.Interests...))
	bTopics := lowerSet(append(append([]string{}, b.Preferences.PreferredTopics...), b.Profile.Interests...))

	if intersectsAny(a.Preferences.ExcludedTopics, bTopics) || intersectsAny(b.Preferences.ExcludedTopics, aTopics) {
		return 0
	}
	return math.Round(jaccard(aTopics, bTopics) * maxTopicPoints)
}

// experienceCompatibility awards points per side whose experience falls
// inside the other side's declared acceptable range.
func experienceCompatibility(aYears, bYears int, aRange, bRange ExperienceRange) float64 {
	var score float64
	if aRange.Contains(bYears) {
		score += experienceFitPoints
	}
	if bRange.Contains(aYears) {
		score += experienceFitPoints
	}
	return math.Min(maxExperiencePoints, score)
}

// domainOverlap is the Jaccard similarity of the domain sets scaled to
// maxDomainPoints.
func domainOverlap(aDomains, bDomains []string) float64 {
	return math.Round(jaccard(lowerSet(aDomains), lowerSet(bDomains)) * maxDomainPoints)
}

// durationCloseness rewards similar session lengths: full points for equal
// durations, partial within 15 and 30 minutes, nothing beyond.
func durationCloseness(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return maxDurationPoints
	case diff <= 15:
		return 10
	case diff <= 30:
		return 5
	default:
		return 0
	}
}

func profileKeywords(skills []Skill) map[string]struct{} {
	out := make(map[string]struct{})
	for _, skill := range skills {
		for _, kw := range skill.Keywords {
			out[strings.ToLower(kw)] = struct{}{}
		}
	}
	return out
}

func lowerSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.ToLower(v)] = struct{}{}
	}
	return out
}

func intersectionCount(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func intersectsAny(excluded []string, set map[string]struct{}) bool {
	for _, v := range excluded {
		if _, ok := set[strings.ToLower(v)]; ok {
			return true
		}
	}
	return false
}

// jaccard computes |A ∩ B| / |A ∪ B|, with an empty union scoring zero.
func jaccard(a, b map[string]struct{}) float64 {
	union := len(a)
	for k := range b {
		if _, ok := a[k]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersectionCount(a, b)) / float64(union)
}
