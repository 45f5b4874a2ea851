package core

import (
	"errors"
	"testing"
)

func TestValidateConversation(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		messages []Message
		wantErr  error
	}{
		{
			name:     "valid conversation",
			id:       "conv-1",
			messages: []Message{{Role: RoleUser, Content: "hello"}},
			wantErr:  nil,
		},
		{
			name:     "empty but present messages",
			id:       "conv-1",
			messages: []Message{},
			wantErr:  nil,
		},
		{
			name:     "empty id",
			id:       "",
			messages: []Message{{Role: RoleUser, Content: "hello"}},
			wantErr:  ErrEmptyID,
		},
		{
			name:     "whitespace id",
			id:       "   ",
			messages: []Message{},
			wantErr:  ErrEmptyID,
		},
		{
			name:     "nil messages",
			id:       "conv-1",
			messages: nil,
			wantErr:  ErrMissingMessages,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConversation(tt.id, tt.messages)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateConversation() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateConversation() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateConversation() error = %v, should wrap ErrValidation", err)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		content string
		wantErr error
	}{
		{name: "user message", role: RoleUser, content: "question", wantErr: nil},
		{name: "assistant message", role: RoleAssistant, content: "answer", wantErr: nil},
		{name: "missing role", role: "", content: "question", wantErr: ErrEmptyRole},
		{name: "missing content", role: RoleUser, content: "", wantErr: ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.role, tt.content)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMessage() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateKnowledge(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		data    any
		wantErr error
	}{
		{name: "string data", key: "k", data: "value", wantErr: nil},
		{name: "structured data", key: "k", data: map[string]any{"a": 1.0}, wantErr: nil},
		{name: "zero number is data", key: "k", data: 0.0, wantErr: nil},
		{name: "empty key", key: "", data: "value", wantErr: ErrEmptyID},
		{name: "nil data", key: "k", data: nil, wantErr: ErrMissingData},
		{name: "empty string data", key: "k", data: "", wantErr: ErrMissingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKnowledge(tt.key, tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateKnowledge() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateKnowledge() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMemoryItem(t *testing.T) {
	if err := ValidateMemoryItem(&MemoryItem{Content: "remember this"}); err != nil {
		t.Errorf("ValidateMemoryItem() unexpected error = %v", err)
	}
	if err := ValidateMemoryItem(nil); !errors.Is(err, ErrValidation) {
		t.Errorf("ValidateMemoryItem(nil) error = %v, want ErrValidation", err)
	}
	if err := ValidateMemoryItem(&MemoryItem{ID: "x"}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("ValidateMemoryItem() error = %v, want ErrEmptyContent", err)
	}
}
