package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/mock-interview-api/internal/models"
)

type databaseCatalog struct {
	db *gorm.DB
}

// NewDatabaseCatalog serves the catalog from the problems table.
func NewDatabaseCatalog(db *gorm.DB) ProblemCatalog {
	return &databaseCatalog{db: db}
}

// Roles and company styles live in JSON columns whose query syntax differs between
// postgres and sqlite, so only difficulty is filtered in SQL.
func (r *databaseCatalog) Find(ctx context.Context, filter ProblemFilter) ([]models.Problem, error) {
	query := r.db.WithContext(ctx).Model(&models.ProblemRecord{})
	if filter.Difficulty != "" {
		query = query.Where("LOWER(difficulty) = ?", strings.ToLower(filter.Difficulty))
	}

	var records []models.ProblemRecord
	if err := query.Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	problems := make([]models.Problem, 0, len(records))
	for _, record := range records {
		problem, err := record.Problem()
		if err != nil {
			return nil, err
		}
		if filter.Matches(problem) {
			problems = append(problems, problem)
		}
	}
	return problems, nil
}

func (r *databaseCatalog) GetByID(ctx context.Context, id string) (models.Problem, error) {
	var record models.ProblemRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Problem{}, ErrProblemNotFound
		}
		return models.Problem{}, err
	}
	return record.Problem()
}

// SeedProblems upserts problems into the problems table keyed by id.
func SeedProblems(ctx context.Context, db *gorm.DB, problems []models.Problem) (int64, error) {
	if len(problems) == 0 {
		return 0, nil
	}

	records := make([]models.ProblemRecord, 0, len(problems))
	for _, problem := range problems {
		record, err := models.NewProblemRecord(problem)
		if err != nil {
			return 0, err
		}
		records = append(records, record)
	}

	tx := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "prompt", "function_signature", "topics", "difficulty",
			"roles", "company_style", "constraints", "tests", "updated_at",
		}),
	}).Create(&records)

	return tx.RowsAffected, tx.Error
}
