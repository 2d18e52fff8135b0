package dto

// ProblemQuery carries the optional filters accepted by the problem endpoints.
type ProblemQuery struct {
	Role       string `query:"role"`
	Company    string `query:"company"`
	Difficulty string `query:"difficulty"`
}
