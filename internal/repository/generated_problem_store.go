package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/mock-interview-api/internal/models"
)

const generatedProblemKeyPrefix = "mockint:problem:"

// GeneratedProblemStore remembers LLM-generated problems so clients can fetch them by id.
type GeneratedProblemStore interface {
	Save(ctx context.Context, problem models.Problem) error
	Get(ctx context.Context, id string) (models.Problem, error)
}

type redisProblemStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProblemStore keeps generated problems in Redis for ttl.
func NewRedisProblemStore(client *redis.Client, ttl time.Duration) GeneratedProblemStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisProblemStore{client: client, ttl: ttl}
}

func (s *redisProblemStore) Save(ctx context.Context, problem models.Problem) error {
	if problem.ID == "" {
		return errors.New("problem id is required")
	}
	payload, err := json.Marshal(problem)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, generatedProblemKeyPrefix+problem.ID, payload, s.ttl).Err()
}

func (s *redisProblemStore) Get(ctx context.Context, id string) (models.Problem, error) {
	payload, err := s.client.Get(ctx, generatedProblemKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Problem{}, ErrProblemNotFound
		}
		return models.Problem{}, err
	}

	var problem models.Problem
	if err := json.Unmarshal(payload, &problem); err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}
