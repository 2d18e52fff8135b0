package dto

import "github.com/noah-isme/mock-interview-api/internal/models"

// FeedbackRequest asks the LLM to critique an evaluated submission.
type FeedbackRequest struct {
	Problem    *models.Problem   `json:"problem" validate:"required"`
	Code       string            `json:"code" validate:"required"`
	EvalResult *EvaluationResult `json:"evalResult" validate:"required"`
	Role       string            `json:"role"`
	Company    string            `json:"company"`
	Language   string            `json:"language"`
	Mode       string            `json:"mode" validate:"omitempty,oneof=single reference"`
}

// FeedbackResponse is the critique plus the final score. The reference-solution mode
// also fills Solution, TestScore and AIScore.
type FeedbackResponse struct {
	Feedback  string `json:"feedback"`
	Solution  string `json:"solution,omitempty"`
	Score     int    `json:"score"`
	TestScore *int   `json:"testScore,omitempty"`
	AIScore   *int   `json:"aiScore,omitempty"`
}
