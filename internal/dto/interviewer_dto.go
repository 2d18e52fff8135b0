package dto

import (
	"strings"

	"github.com/noah-isme/mock-interview-api/internal/models"
)

// InterviewerRequest drives one interviewer turn. Two client generations exist, so the
// transcript and the candidate utterance are each accepted under two names.
type InterviewerRequest struct {
	Problem             *models.Problem              `json:"problem"`
	History             []models.ConversationMessage `json:"history"`
	ConversationHistory []models.ConversationMessage `json:"conversationHistory"`
	UserMessage         string                       `json:"userMessage"`
	Message             string                       `json:"message"`
	Action              string                       `json:"action"`
	Role                string                       `json:"role"`
	Company             string                       `json:"company"`
	Language            string                       `json:"language"`
	Code                string                       `json:"code"`
}

// Transcript returns whichever history field the client populated.
func (r InterviewerRequest) Transcript() []models.ConversationMessage {
	if len(r.History) > 0 {
		return r.History
	}
	return r.ConversationHistory
}

// Utterance returns the latest candidate message.
func (r InterviewerRequest) Utterance() string {
	if msg := strings.TrimSpace(r.UserMessage); msg != "" {
		return msg
	}
	return strings.TrimSpace(r.Message)
}

// InterviewerReply is the response shape for clients that do not send an action.
type InterviewerReply struct {
	Reply string `json:"reply"`
}

// AssistantMessage is a transcript entry in the role/content shape.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InterviewerActionReply is the response shape for action-driven clients.
type InterviewerActionReply struct {
	Response string           `json:"response"`
	Message  AssistantMessage `json:"message"`
}

// NewInterviewerActionReply wraps reply text in the action response shape.
func NewInterviewerActionReply(reply string) InterviewerActionReply {
	return InterviewerActionReply{
		Response: reply,
		Message:  AssistantMessage{Role: "assistant", Content: reply},
	}
}
