package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/noah-isme/mock-interview-api/internal/models"
)

//go:embed data/problems.json
var defaultProblems []byte

// ErrProblemNotFound indicates no problem exists for the requested id.
var ErrProblemNotFound = errors.New("problem not found")

// ProblemFilter narrows the catalog. Empty fields match everything.
type ProblemFilter struct {
	Role       string
	Company    string
	Difficulty string
}

// Matches reports whether p satisfies every non-empty filter.
func (f ProblemFilter) Matches(p models.Problem) bool {
	if f.Role != "" && !p.HasRole(f.Role) {
		return false
	}
	if f.Company != "" && !p.HasCompanyStyle(f.Company) {
		return false
	}
	if f.Difficulty != "" && !strings.EqualFold(p.Difficulty, f.Difficulty) {
		return false
	}
	return true
}

// ProblemCatalog exposes the curated interview problems.
type ProblemCatalog interface {
	Find(ctx context.Context, filter ProblemFilter) ([]models.Problem, error)
	GetByID(ctx context.Context, id string) (models.Problem, error)
}

// DefaultProblems returns the problems bundled with the binary.
func DefaultProblems() ([]models.Problem, error) {
	return decodeProblems(defaultProblems)
}

// LoadCatalogFile reads problems from a JSON or YAML file, chosen by extension.
func LoadCatalogFile(path string) ([]models.Problem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		content, err = yamlToJSON(content)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
	case ".json":
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}

	problems, err := decodeProblems(content)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return problems, nil
}

func decodeProblems(content []byte) ([]models.Problem, error) {
	var problems []models.Problem
	if err := json.Unmarshal(content, &problems); err != nil {
		return nil, err
	}
	if err := validateCatalog(problems); err != nil {
		return nil, err
	}
	return problems, nil
}

func validateCatalog(problems []models.Problem) error {
	seen := make(map[string]struct{}, len(problems))
	for i, problem := range problems {
		if strings.TrimSpace(problem.ID) == "" {
			return fmt.Errorf("problem %d: id is required", i)
		}
		if _, dup := seen[problem.ID]; dup {
			return fmt.Errorf("problem %q: duplicate id", problem.ID)
		}
		seen[problem.ID] = struct{}{}
		if len(problem.Tests) == 0 {
			return fmt.Errorf("problem %q: at least one test is required", problem.ID)
		}
	}
	return nil
}

type staticCatalog struct {
	problems []models.Problem
	byID     map[string]int
}

// NewStaticCatalog serves problems from memory.
func NewStaticCatalog(problems []models.Problem) (ProblemCatalog, error) {
	if err := validateCatalog(problems); err != nil {
		return nil, err
	}

	catalog := &staticCatalog{
		problems: problems,
		byID:     make(map[string]int, len(problems)),
	}
	for i, problem := range problems {
		catalog.byID[problem.ID] = i
	}
	return catalog, nil
}

func (c *staticCatalog) Find(_ context.Context, filter ProblemFilter) ([]models.Problem, error) {
	matches := make([]models.Problem, 0, len(c.problems))
	for _, problem := range c.problems {
		if filter.Matches(problem) {
			matches = append(matches, problem)
		}
	}
	return matches, nil
}

func (c *staticCatalog) GetByID(_ context.Context, id string) (models.Problem, error) {
	idx, ok := c.byID[id]
	if !ok {
		return models.Problem{}, ErrProblemNotFound
	}
	return c.problems[idx], nil
}
