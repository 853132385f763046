// Package models defines API request and response shapes.
package models

import (
	"github.com/somnus/somnus/pkg/engine"
	"github.com/somnus/somnus/pkg/sleep"
)

// TaskRequest is the body of POST /api/v1/tasks.
type TaskRequest struct {
	UserID   string          `json:"user_id"`
	Sessions []sleep.Session `json:"sessions,omitempty"`
	Profile  *sleep.Profile  `json:"profile,omitempty"`
}

// ToTask converts the request into a pipeline task.
func (r *TaskRequest) ToTask() *engine.Task {
	return &engine.Task{
		UserID:   r.UserID,
		Sessions: r.Sessions,
		Profile:  r.Profile,
	}
}

// UserListResponse is the body of GET /api/v1/memory.
type UserListResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// DeleteResponse acknowledges a memory tier deletion.
type DeleteResponse struct {
	UserID  string `json:"user_id"`
	Tier    string `json:"tier"`
	Deleted bool   `json:"deleted"`
}
