package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Problem difficulties.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Problem is a coding interview exercise together with the tests used to grade it.
type Problem struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Prompt            string     `json:"prompt"`
	FunctionSignature string     `json:"functionSignature,omitempty"`
	Topics            []string   `json:"topics"`
	Difficulty        string     `json:"difficulty"`
	Roles             []string   `json:"roles"`
	CompanyStyle      []string   `json:"companyStyle"`
	Constraints       string     `json:"constraints,omitempty"`
	Tests             []TestCase `json:"tests"`
}

// TestCase pairs an input with its expected output. Both are kept as raw JSON so that
// object key order reaches the evaluator untouched.
type TestCase struct {
	Description string          `json:"description"`
	Input       json.RawMessage `json:"input"`
	Expected    json.RawMessage `json:"expected"`
}

// HasRole reports whether the problem targets the given role.
func (p Problem) HasRole(role string) bool {
	return containsFold(p.Roles, role)
}

// HasCompanyStyle reports whether the problem is written in the given company's style.
func (p Problem) HasCompanyStyle(company string) bool {
	return containsFold(p.CompanyStyle, company)
}

func containsFold(values []string, target string) bool {
	target = strings.TrimSpace(target)
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), target) {
			return true
		}
	}
	return false
}

// ProblemRecord is the database representation of a catalog problem.
// Tests are stored as text rather than JSONB so object key order survives a round trip.
type ProblemRecord struct {
	ID                string         `gorm:"primaryKey;size:128"`
	Title             string         `gorm:"size:255;not null"`
	Prompt            string         `gorm:"type:text;not null"`
	FunctionSignature string         `gorm:"type:text"`
	Topics            datatypes.JSON `gorm:"type:json"`
	Difficulty        string         `gorm:"size:16;not null;index"`
	Roles             datatypes.JSON `gorm:"type:json"`
	CompanyStyle      datatypes.JSON `gorm:"type:json"`
	Constraints       string         `gorm:"type:text"`
	Tests             string         `gorm:"type:text;not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName pins the table name.
func (ProblemRecord) TableName() string {
	return "problems"
}

// NewProblemRecord converts a problem into its persisted form.
func NewProblemRecord(p Problem) (ProblemRecord, error) {
	topics, err := json.Marshal(nonNil(p.Topics))
	if err != nil {
		return ProblemRecord{}, err
	}
	roles, err := json.Marshal(nonNil(p.Roles))
	if err != nil {
		return ProblemRecord{}, err
	}
	companies, err := json.Marshal(nonNil(p.CompanyStyle))
	if err != nil {
		return ProblemRecord{}, err
	}
	tests, err := json.Marshal(p.Tests)
	if err != nil {
		return ProblemRecord{}, err
	}

	return ProblemRecord{
		ID:                p.ID,
		Title:             p.Title,
		Prompt:            p.Prompt,
		FunctionSignature: p.FunctionSignature,
		Topics:            datatypes.JSON(topics),
		Difficulty:        strings.ToLower(p.Difficulty),
		Roles:             datatypes.JSON(roles),
		CompanyStyle:      datatypes.JSON(companies),
		Constraints:       p.Constraints,
		Tests:             string(tests),
	}, nil
}

// Problem converts the record back into the domain shape.
func (r ProblemRecord) Problem() (Problem, error) {
	problem := Problem{
		ID:                r.ID,
		Title:             r.Title,
		Prompt:            r.Prompt,
		FunctionSignature: r.FunctionSignature,
		Difficulty:        r.Difficulty,
		Constraints:       r.Constraints,
	}
	for _, field := range []struct {
		raw    datatypes.JSON
		target *[]string
	}{
		{r.Topics, &problem.Topics},
		{r.Roles, &problem.Roles},
		{r.CompanyStyle, &problem.CompanyStyle},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.target); err != nil {
			return Problem{}, err
		}
	}
	if err := json.Unmarshal([]byte(r.Tests), &problem.Tests); err != nil {
		return Problem{}, err
	}
	return problem, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
