// Package matching implements the real-time matchmaking engine that pairs
// interview partners. Participants join a waiting pool with their preferences
// and a profile snapshot; the coordinator scores pairwise compatibility,
// atomically claims both sides of the best viable pair, and runs the
// accept/reject handshake through to session handoff.
package matching

import (
	"fmt"
	"time"
)

// Role is the side of the interview a participant wants to practice.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleInterviewee Role = "interviewee"
)

// Opposite returns the role a participant can be paired with.
func (r Role) Opposite() Role {
	if r == RoleInterviewer {
		return RoleInterviewee
	}
	return RoleInterviewer
}

func (r Role) valid() bool {
	return r == RoleInterviewer || r == RoleInterviewee
}

// InterviewType enumerates the supported interview formats.
type InterviewType string

const (
	InterviewTechnical    InterviewType = "technical"
	InterviewBehavioral   InterviewType = "behavioral"
	InterviewSystemDesign InterviewType = "system-design"
	InterviewCoding       InterviewType = "coding"
	InterviewMixed        InterviewType = "mixed"
)

func (t InterviewType) valid() bool {
	switch t {
	case InterviewTechnical, InterviewBehavioral, InterviewSystemDesign, InterviewCoding, InterviewMixed:
		return true
	}
	return false
}

// Difficulty enumerates the question difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// SkillLevel is a position on the four-step proficiency ladder. Levels within
// one step of each other are considered compatible for required-skill checks.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelAdvanced     SkillLevel = "advanced"
	LevelExpert       SkillLevel = "expert"
)

var skillLevelIndex = map[SkillLevel]int{
	LevelBeginner:     0,
	LevelIntermediate: 1,
	LevelAdvanced:     2,
	LevelExpert:       3,
}

// Duration bounds for an interview, in minutes.
const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 120
)

// ExperienceRange is the span of partner experience (in years) a participant
// will accept.
type ExperienceRange struct {
	MinYears int `json:"min_years"`
	MaxYears int `json:"max_years"`
}

// Contains reports whether years falls inside the range.
func (r ExperienceRange) Contains(years int) bool {
	return years >= r.MinYears && years <= r.MaxYears
}

// SkillRequirement names a skill the partner must have, at a compatible level.
type SkillRequirement struct {
	Name  string     `json:"name"`
	Level SkillLevel `json:"level"`
}

// Preferences is the validated set of matching constraints a participant
// declares when joining the queue. Every recognized field is enumerated here;
// anything outside the declared ranges is rejected at join time.
type Preferences struct {
	Role            Role               `json:"role"`
	InterviewType   InterviewType      `json:"interview_type"`
	DurationMinutes int                `json:"duration_minutes"`
	Difficulty      Difficulty         `json:"difficulty"`
	RequiredSkills  []SkillRequirement `json:"required_skills,omitempty"`
	PreferredSkills []string           `json:"preferred_skills,omitempty"`
	ExcludedSkills  []string           `json:"excluded_skills,omitempty"`
	PreferredTopics []string           `json:"preferred_topics,omitempty"`
	ExcludedTopics  []string           `json:"excluded_topics,omitempty"`
	Experience      ExperienceRange    `json:"experience_range"`
}

// ValidationError describes a preference field that failed validation. Joins
// carrying invalid preferences are rejected before the participant enters
// the pool.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("matching: invalid %s: %s", e.Field, e.Reason)
}

// Validate checks every field against its declared range or enum.
func (p *Preferences) Validate() error {
	if !p.Role.valid() {
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", p.Role)}
	}
	if !p.InterviewType.valid() {
		return &ValidationError{Field: "interview_type", Reason: fmt.Sprintf("unknown interview type %q", p.InterviewType)}
	}
	if p.DurationMinutes < MinDurationMinutes || p.DurationMinutes > MaxDurationMinutes {
		return &ValidationError{
			Field:  "duration_minutes",
			Reason: fmt.Sprintf("%d is outside [%d, %d]", p.DurationMinutes, MinDurationMinutes, MaxDurationMinutes),
		}
	}
	if !p.Difficulty.valid() {
		return &ValidationError{Field: "difficulty", Reason: fmt.Sprintf("unknown difficulty %q", p.Difficulty)}
	}
	for _, req := range p.RequiredSkills {
		if req.Name == "" {
			return &ValidationError{Field: "required_skills", Reason: "skill name must not be empty"}
		}
		if _, ok := skillLevelIndex[req.Level]; !ok {
			return &ValidationError{Field: "required_skills", Reason: fmt.Sprintf("unknown skill level %q", req.Level)}
		}
	}
	if p.Experience.MinYears < 0 {
		return &ValidationError{Field: "experience_range", Reason: "min years must not be negative"}
	}
	if p.Experience.MaxYears < p.Experience.MinYears {
		return &ValidationError{Field: "experience_range", Reason: "max years must not be below min years"}
	}
	return nil
}

// Skill is one entry of a participant's profile snapshot.
type Skill struct {
	Name     string     `json:"name"`
	Level    SkillLevel `json:"level"`
	Keywords []string   `json:"keywords,omitempty"`
}

// Profile is the compatibility-relevant slice of a user's profile, copied in
// at join time so scoring never needs a live profile lookup.
type Profile struct {
	Skills          []Skill  `json:"skills,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Domains         []string `json:"domains,omitempty"`
	ExperienceYears int      `json:"experience_years"`
}

// Status is a participant's position in the matchmaking state machine.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusProposed  Status = "proposed"
	StatusAccepted  Status = "accepted"
	StatusPaired    Status = "paired"
	StatusCancelled Status = "cancelled"
)

// Participant is the state of one user currently seeking a match. Exactly one
// record per user exists in the pool at any time; joining again replaces the
// previous record.
type Participant struct {
	UserID        string      `json:"user_id"`
	Gateway       string      `json:"gateway"` // which wsserver instance owns the socket
	Preferences   Preferences `json:"preferences"`
	Profile       Profile     `json:"profile"`
	Status        Status      `json:"status"`
	JoinedAt      time.Time   `json:"joined_at"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
}

// Summary is the partner-facing view of a participant included in match
// proposals. It deliberately omits preferences and contact details.
type Summary struct {
	UserID          string   `json:"user_id"`
	Role            Role     `json:"role"`
	ExperienceYears int      `json:"experience_years"`
	Skills          []string `json:"skills,omitempty"`
}

// Summarize builds the partner-facing summary of a participant.
func (p *Participant) Summarize() Summary {
	skills := make([]string, 0, len(p.Profile.Skills))
	for _, s := range p.Profile.Skills {
		skills = append(skills, s.Name)
	}
	return Summary{
		UserID:          p.UserID,
		Role:            p.Preferences.Role,
		ExperienceYears: p.Profile.ExperienceYears,
		Skills:          skills,
	}
}
