package ipc

import "github.com/rbright/tandem/internal/domain"

// Request is one newline-delimited JSON command sent to the owner process.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response reports the command outcome and the mode it left the app in.
// Optional payloads are filled only by the commands that produce them.
type Response struct {
	OK         bool                    `json:"ok"`
	Mode       string                  `json:"mode,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Kind       string                  `json:"kind,omitempty"`
	Processing *domain.ProcessingState `json:"processing,omitempty"`
	Session    *domain.Session         `json:"session,omitempty"`
	Turn       *domain.Message         `json:"turn,omitempty"`
	History    []domain.Session        `json:"history,omitempty"`
	Settings   *domain.Settings        `json:"settings,omitempty"`
}
