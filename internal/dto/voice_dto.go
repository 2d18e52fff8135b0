package dto

import "github.com/noah-isme/mock-interview-api/internal/models"

// VoiceFeedbackRequest asks for short spoken feedback on a candidate answer.
type VoiceFeedbackRequest struct {
	Problem *models.Problem `json:"problem"`
	Answer  string          `json:"answer"`
	Company string          `json:"company"`
	Role    string          `json:"role"`
}

// VoiceFeedbackResult holds the synthesized audio and the text it was made from.
type VoiceFeedbackResult struct {
	Audio       []byte
	ContentType string
	Text        string
}

// VoiceInterviewerResponse is the interviewer reply with optional base64 audio.
type VoiceInterviewerResponse struct {
	Reply    string  `json:"reply"`
	Audio    *string `json:"audio,omitempty"`
	TTSError string  `json:"ttsError,omitempty"`
}
