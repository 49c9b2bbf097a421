package models

// Roles understood by every chat provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn sent to a language model.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request is an incoming question. Options of a multiple-choice question are
// embedded in Query as numbered lines ("1. ...").
type Request struct {
	ID    int    `json:"id"`
	Query string `json:"query"`
}

// Response is the answer returned to the caller.
type Response struct {
	ID        int      `json:"id"`
	Answer    *int     `json:"answer"`
	Reasoning string   `json:"reasoning"`
	Sources   []string `json:"sources"`
}

func SystemMessage(text string) Message { return Message{Role: RoleSystem, Text: text} }

func UserMessage(text string) Message { return Message{Role: RoleUser, Text: text} }
