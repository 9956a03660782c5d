package matching

import (
	"testing"
)

// compatiblePair returns an interviewer/interviewee pair that scores highly
// on every factor except skills.
func compatiblePair() (*Participant, *Participant) {
	a := &Participant{
		UserID: "alice",
		Preferences: Preferences{
			Role:            RoleInterviewer,
			InterviewType:   InterviewTechnical,
			DurationMinutes: 60,
			Difficulty:      DifficultyMedium,
			PreferredTopics: []string{"algorithms"},
			Experience:      ExperienceRange{MinYears: 0, MaxYears: 10},
		},
		Profile: Profile{
			ExperienceYears: 5,
			Domains:         []string{"backend"},
		},
	}
	b := &Participant{
		UserID: "bob",
		Preferences: Preferences{
			Role:            RoleInterviewee,
			InterviewType:   InterviewTechnical,
			DurationMinutes: 60,
			Difficulty:      DifficultyMedium,
			PreferredTopics: []string{"algorithms"},
			Experience:      ExperienceRange{MinYears: 0, MaxYears: 10},
		},
		Profile: Profile{
			ExperienceYears: 3,
			Domains:         []string{"backend"},
		},
	}
	return a, b
}

func TestCompatibility_FullAlignment(t *testing.T) {
	a, b := compatiblePair()
	score := Compatibility(a, b)

	// role 100 + topics 40 + experience 30 + domains 25 + type 20 +
	// duration 15 + difficulty 10 = 240 out of 290.
	if score.Raw != 240 {
		t.Errorf("raw = %v, want 240 (breakdown %+v)", score.Raw, score.Breakdown)
	}
	if score.Max != 290 {
		t.Errorf("max = %v, want 290", score.Max)
	}
	if !score.Viable() {
		t.Errorf("expected pair to be viable at %.1f%%", score.Percentage)
	}
}

func TestCompatibility_EqualRolesScoreZero(t *testing.T) {
	a, b := compatiblePair()
	b.Preferences.Role = RoleInterviewer

	score := Compatibility(a, b)
	if score.Raw != 0 || score.Percentage != 0 {
		t.Errorf("equal roles should zero the score, got raw=%v pct=%v", score.Raw, score.Percentage)
	}
	if score.Viable() {
		t.Error("equal roles must never be viable")
	}
}

func TestCompatibility_Symmetric(t *testing.T) {
	a, b := compatiblePair()
	a.Preferences.RequiredSkills = []SkillRequirement{{Name: "go", Level: LevelAdvanced}}
	b.Profile.Skills = []Skill{{Name: "go", Level: LevelIntermediate, Keywords: []string{"grpc"}}}

	ab := Compatibility(a, b)
	ba := Compatibility(b, a)
	if ab.Raw != ba.Raw {
		t.Errorf("score not symmetric: %v vs %v", ab.Raw, ba.Raw)
	}
	if ab.Breakdown != ba.Breakdown {
		t.Errorf("breakdown not symmetric: %+v vs %+v", ab.Breakdown, ba.Breakdown)
	}
}

func TestCompatibility_ExcludedTopicVetoesFactor(t *testing.T) {
	a, b := compatiblePair()
	a.Preferences.ExcludedTopics = []string{"Algorithms"}

	score := Compatibility(a, b)
	if score.Breakdown.TopicOverlap != 0 {
		t.Errorf("excluded topic should zero the topic factor, got %v", score.Breakdown.TopicOverlap)
	}
}

func TestCompatibility_DurationTiers(t *testing.T) {
	tests := []struct {
		aMin, bMin int
		want       float64
	}{
		{60, 60, 15},
		{60, 45, 10},
		{60, 75, 10},
		{60, 30, 5},
		{60, 105, 0},
	}
	for _, tt := range tests {
		a, b := compatiblePair()
		a.Preferences.DurationMinutes = tt.aMin
		b.Preferences.DurationMinutes = tt.bMin
		got := Compatibility(a, b).Breakdown.DurationCloseness
		if got != tt.want {
			t.Errorf("duration %d vs %d = %v, want %v", tt.aMin, tt.bMin, got, tt.want)
		}
	}
}

func TestCompatibility_RequiredSkillLevelTolerance(t *testing.T) {
	a, b := compatiblePair()
	a.Preferences.RequiredSkills = []SkillRequirement{{Name: "go", Level: LevelAdvanced}}

	// Within one ladder step: full skill credit.
	b.Profile.Skills = []Skill{{Name: "Go", Level: LevelIntermediate}}
	if got := Compatibility(a, b).Breakdown.SkillOverlap; got != 50 {
		t.Errorf("adjacent level should satisfy the requirement, skill overlap = %v", got)
	}

	// Two steps apart: no credit.
	b.Profile.Skills = []Skill{{Name: "go", Level: LevelBeginner}}
	if got := Compatibility(a, b).Breakdown.SkillOverlap; got != 0 {
		t.Errorf("two-step level gap should score zero, got %v", got)
	}
}

func TestCompatibility_ExperiencePerSide(t *testing.T) {
	a, b := compatiblePair()

	// Only one side's range contains the other's years.
	a.Preferences.Experience = ExperienceRange{MinYears: 0, MaxYears: 10}
	b.Preferences.Experience = ExperienceRange{MinYears: 8, MaxYears: 20}

	got := Compatibility(a, b).Breakdown.ExperienceCompatibility
	if got != 15 {
		t.Errorf("one-sided range fit should score 15, got %v", got)
	}
}

func TestViable_ThresholdBoundary(t *testing.T) {
	a, b := compatiblePair()

	// Strip every soft factor so only role + type + duration + difficulty
	// remain: 145/290 lands exactly on the 50% threshold.
	a.Preferences.PreferredTopics = nil
	b.Preferences.PreferredTopics = nil
	a.Profile.Domains = nil
	b.Profile.Domains = nil
	a.Preferences.Experience = ExperienceRange{MinYears: 10, MaxYears: 20}
	b.Preferences.Experience = ExperienceRange{MinYears: 10, MaxYears: 20}

	score := Compatibility(a, b)
	if score.Percentage != 50 {
		t.Fatalf("percentage = %v, want exactly 50", score.Percentage)
	}
	if !score.Viable() {
		t.Error("a score at exactly the threshold should be viable")
	}
}

func TestReasons(t *testing.T) {
	a, b := compatiblePair()
	reasons := Compatibility(a, b).Reasons()

	want := map[string]bool{
		"Shared interview topics":        true,
		"Compatible experience levels":   true,
		"Similar domain expertise":       true,
		"Same interview type preference": true,
	}
	if len(reasons) != len(want) {
		t.Fatalf("reasons = %v, want %d entries", reasons, len(want))
	}
	for _, r := range reasons {
		if !want[r] {
			t.Errorf("unexpected reason %q", r)
		}
	}
}

func TestReasons_Fallback(t *testing.T) {
	var s Score
	reasons := s.Reasons()
	if len(reasons) != 1 || reasons[0] != "Good overall compatibility" {
		t.Errorf("empty breakdown should fall back to a single generic reason, got %v", reasons)
	}
}
