package models

import (
	"encoding/json"
	"strings"
)

// ConversationRole identifies who authored a conversation turn.
type ConversationRole string

const (
	RoleInterviewer ConversationRole = "interviewer"
	RoleCandidate   ConversationRole = "candidate"
)

// ConversationMessage is one turn of the mock interview transcript.
type ConversationMessage struct {
	Role ConversationRole `json:"role"`
	Text string           `json:"text"`
}

// UnmarshalJSON accepts both transcript shapes used by clients:
// {"from":"candidate","text":"..."} and {"role":"user","content":"..."}.
func (m *ConversationMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		From    string `json:"from"`
		Role    string `json:"role"`
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	author := raw.From
	if author == "" {
		author = raw.Role
	}
	switch strings.ToLower(strings.TrimSpace(author)) {
	case "candidate", "user":
		m.Role = RoleCandidate
	default:
		m.Role = RoleInterviewer
	}

	m.Text = raw.Text
	if m.Text == "" {
		m.Text = raw.Content
	}
	return nil
}
