// Package api is the client for the Wealth Builder backend HTTP API.
//
// Every response body is checked against the endpoint's JSON schema before it
// is decoded, so a backend shape change surfaces as a KindMalformed error at
// the boundary instead of as zero values deeper in the client.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ID is a backend identifier. The backend emits both numeric and string IDs,
// so both are accepted and normalised to a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id must be an integer: %s", n)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// LiteracyLevel is a user's or learning path's financial literacy level.
type LiteracyLevel string

const (
	LevelBeginner     LiteracyLevel = "BEGINNER"
	LevelIntermediate LiteracyLevel = "INTERMEDIATE"
	LevelAdvanced     LiteracyLevel = "ADVANCED"
)

// Label returns the display label for the level.
func (l LiteracyLevel) Label() string {
	switch l {
	case LevelBeginner:
		return "Beginner Friendly"
	case LevelIntermediate:
		return "Intermediate Level"
	case LevelAdvanced:
		return "Advanced Topics"
	default:
		return string(l)
	}
}

// Goal is the user's primary goal on the platform.
type Goal string

const (
	GoalLearning  Goal = "LEARNING"
	GoalInvesting Goal = "INVESTING"
)

// User is the authenticated account as returned by the auth endpoints.
type User struct {
	ID            ID            `json:"id,omitempty"`
	Email         string        `json:"email"`
	Name          string        `json:"name,omitempty"`
	LiteracyLevel LiteracyLevel `json:"literacyLevel,omitempty"`
	PrimaryGoal   Goal          `json:"primaryGoal,omitempty"`
}

// DisplayName returns the name to greet the user with.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Credentials is the body of POST /api/auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of POST /api/auth/register.
type Registration struct {
	Email         string        `json:"email"`
	Password      string        `json:"password"`
	Name          string        `json:"name,omitempty"`
	LiteracyLevel LiteracyLevel `json:"literacyLevel"`
	PrimaryGoal   Goal          `json:"primaryGoal"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ModuleRef is a module entry inside a learning path.
type ModuleRef struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// LearningPath is a leveled, ordered sequence of modules.
type LearningPath struct {
	ID          ID            `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Level       LiteracyLevel `json:"level"`
	Modules     []ModuleRef   `json:"modules"`
}

// QuizQuestion is a question as shown to the learner. The backend also sends
// the correct answer; it is deliberately not decoded since grading is
// server-side only.
type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// PathRef names the learning path a module belongs to.
type PathRef struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

// Module is one lesson with its quiz.
type Module struct {
	ID            ID             `json:"id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	VideoURL      string         `json:"videoUrl,omitempty"`
	QuizQuestions []QuizQuestion `json:"quizQuestions"`
	Path          *PathRef       `json:"path,omitempty"`
}

// QuizSubmission is the body of POST /api/learning/quiz.
type QuizSubmission struct {
	ModuleID ID       `json:"moduleId"`
	Answers  []string `json:"answers"`
}

// QuizResult is the backend's verdict for a submission.
type QuizResult struct {
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correctAnswers"`
	TotalQuestions int     `json:"totalQuestions"`
	Passed         bool    `json:"passed"`
}

// Investment is a funding opportunity listing.
type Investment struct {
	ID              ID              `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	AmountRequested decimal.Decimal `json:"amountRequested"`
	AmountRaised    decimal.Decimal `json:"amountRaised"`
	ReturnRate      float64         `json:"returnRate"`
	Duration        string          `json:"duration"`
	RiskLevel       string          `json:"riskLevel"`
	Category        string          `json:"category"`
}

// ModuleProgress is one per-module completion record.
type ModuleProgress struct {
	ModuleID  ID       `json:"moduleId"`
	Completed bool     `json:"completed"`
	QuizScore *float64 `json:"quizScore"`
}

// UserProgress is the backend-aggregated progress for the current user.
type UserProgress struct {
	CompletedModules int              `json:"completedModules"`
	QuizzesTaken     int              `json:"quizzesTaken"`
	AverageScore     float64          `json:"averageScore"`
	Streak           int              `json:"streak"`
	OverallProgress  float64          `json:"overallProgress"`
	Modules          []ModuleProgress `json:"progress"`
}

// ForModule returns the completion record for a module, if any.
func (p UserProgress) ForModule(id ID) (ModuleProgress, bool) {
	for _, m := range p.Modules {
		if m.ModuleID == id {
			return m, true
		}
	}
	return ModuleProgress{}, false
}

// PasswordChange is the body of PUT /api/user/profile.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
