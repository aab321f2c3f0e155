package model

import (
	"errors"
	"time"
)

// Type discriminates the challenge variants.
type Type string

const (
	TypeCoding         Type = "coding"
	TypeMultipleChoice Type = "multiple_choice"
)

// Difficulty buckets used for badge rules and display.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Normalization modes for comparing program output.
const (
	NormalizeExact  = "exact"  // trailing whitespace and trailing newlines ignored
	NormalizeTokens = "tokens" // all whitespace runs collapsed
)

// TestCase is one stdin/expected-stdout pair. Order matters: grading
// runs cases in stored order and stops at the first failure.
type TestCase struct {
	Stdin    string `json:"stdin"`
	Expected string `json:"expected"`
}

// CodingSpec holds the judging data for coding challenges.
// Never exposed to clients except StarterCode and Language.
type CodingSpec struct {
	Language    string     `json:"language"`
	StarterCode string     `json:"starter_code"`
	Solution    string     `json:"solution,omitempty"`
	Normalize   string     `json:"normalize,omitempty"`
	TestCases   []TestCase `json:"test_cases"`
}

// ChoiceSpec holds the options and answer for multiple choice challenges.
type ChoiceSpec struct {
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// Challenge is a tagged variant: the common header plus exactly one of
// Coding or Choice, matching Type.
type Challenge struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        Type       `json:"type"`
	Difficulty  Difficulty `json:"difficulty"`
	XPReward    int        `json:"xp_reward"`
	CreatedAt   time.Time  `json:"created_at"`

	Coding *CodingSpec `json:"coding,omitempty"`
	Choice *ChoiceSpec `json:"choice,omitempty"`
}

var (
	ErrSpecMismatch = errors.New("challenge spec does not match its type")
)

// Validate checks the variant invariant: exactly one spec, matching Type.
func (c *Challenge) Validate() error {
	switch c.Type {
	case TypeCoding:
		if c.Coding == nil || c.Choice != nil {
			return ErrSpecMismatch
		}
		if c.Coding.Language == "" {
			return errors.New("coding challenge requires a language")
		}
	case TypeMultipleChoice:
		if c.Choice == nil || c.Coding != nil {
			return ErrSpecMismatch
		}
		if len(c.Choice.Options) == 0 || c.Choice.CorrectAnswer == "" {
			return errors.New("multiple choice challenge requires options and an answer")
		}
	default:
		return errors.New("unknown challenge type")
	}
	if c.Title == "" {
		return errors.New("challenge requires a title")
	}
	if c.XPReward < 0 {
		return errors.New("xp reward cannot be negative")
	}
	return nil
}

// NormalizeMode returns the configured output normalization, defaulting
// to exact comparison.
func (c *Challenge) NormalizeMode() string {
	if c.Coding != nil && c.Coding.Normalize != "" {
		return c.Coding.Normalize
	}
	return NormalizeExact
}

// Summary is the listing view. It carries no judging data.
type Summary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        Type       `json:"type"`
	Difficulty  Difficulty `json:"difficulty"`
	XPReward    int        `json:"xp_reward"`
	Language    string     `json:"language,omitempty"`
}

// Detail is the single-challenge view: summary plus starter code and
// choice options. Hidden tests and the correct answer stay server-side.
type Detail struct {
	Summary
	StarterCode string   `json:"starter_code,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// ToSummary projects the public listing fields.
func (c *Challenge) ToSummary() Summary {
	s := Summary{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Type:        c.Type,
		Difficulty:  c.Difficulty,
		XPReward:    c.XPReward,
	}
	if c.Coding != nil {
		s.Language = c.Coding.Language
	}
	return s
}

// ToDetail projects the public detail fields.
func (c *Challenge) ToDetail() Detail {
	d := Detail{Summary: c.ToSummary()}
	if c.Coding != nil {
		d.StarterCode = c.Coding.StarterCode
	}
	if c.Choice != nil {
		d.Options = c.Choice.Options
	}
	return d
}
