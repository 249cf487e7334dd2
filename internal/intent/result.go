// Package intent turns a cleaned chat message into a structured command:
// create a task, list open tasks, change a task's status, or nothing.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alekspetrov/dobby/internal/entity"
)

// Action is the kind of command a message carries.
type Action string

const (
	ActionCreate       Action = "create"
	ActionQuery        Action = "query"
	ActionUpdateStatus Action = "update_status"
	ActionUnknown      Action = "unknown"
)

// DefaultTargetStatus is the status an update_status command moves to
// unless it names another one.
const DefaultTargetStatus = "completed"

var (
	// ErrLLMUnavailable means the model could not be reached or is not
	// configured.
	ErrLLMUnavailable = errors.New("llm unavailable")
	// ErrInvalidResponse means the model answered with something that does
	// not decode into a Result.
	ErrInvalidResponse = errors.New("invalid llm response")
)

// CreateParams are the parameters of a create command. Quadrant is always
// canonical; DueDate is the raw YYYY-MM-DD[ HH:MM] string if any.
type CreateParams struct {
	TaskName         string          `json:"task_name"`
	Quadrant         entity.Quadrant `json:"quadrant"`
	DueDate          string          `json:"due_date,omitempty"`
	Owners           []string        `json:"owners"`
	CreateNativeTask bool            `json:"create_native_task"`
}

// UpdateParams are the parameters of an update_status command.
type UpdateParams struct {
	Keyword      string `json:"keyword"`
	TargetStatus string `json:"target_status"`
}

// Result is a decoded command. Exactly one of Create and Update is set for
// the create and update_status actions; neither is set otherwise.
type Result struct {
	Action Action
	Create *CreateParams
	Update *UpdateParams
}

// Query returns a query result.
func Query() *Result { return &Result{Action: ActionQuery} }

// Unknown returns a result that carries no command.
func Unknown() *Result { return &Result{Action: ActionUnknown} }

// NewCreate returns a create result, normalizing the quadrant and owners.
func NewCreate(p CreateParams) *Result {
	p.TaskName = strings.TrimSpace(p.TaskName)
	p.Quadrant = entity.NormalizeQuadrant(string(p.Quadrant))
	if p.Owners == nil {
		p.Owners = []string{}
	}
	return &Result{Action: ActionCreate, Create: &p}
}

// NewUpdate returns an update_status result.
func NewUpdate(keyword, target string) *Result {
	target = strings.TrimSpace(target)
	if target == "" {
		target = DefaultTargetStatus
	}
	return &Result{Action: ActionUpdateStatus, Update: &UpdateParams{
		Keyword:      strings.TrimSpace(keyword),
		TargetStatus: target,
	}}
}

type wireResult struct {
	Action Action          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

type wireParams struct {
	TaskName         string   `json:"task_name"`
	Quadrant         string   `json:"quadrant"`
	DueDate          *string  `json:"due_date"`
	Owners           []string `json:"owners"`
	Keyword          string   `json:"keyword"`
	TargetStatus     string   `json:"target_status"`
	CreateNativeTask bool     `json:"create_native_task"`
}

// MarshalJSON encodes the result as {"action": ..., "params": {...}}.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{Action: r.Action}
	var params any = struct{}{}
	switch {
	case r.Create != nil:
		params = r.Create
	case r.Update != nil:
		params = r.Update
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	w.Params = raw
	return json.Marshal(w)
}

// DecodeResult decodes a model answer. Markdown code fences are tolerated.
// Anything that is not a well-formed create, query or update_status command
// fails with ErrInvalidResponse, including an explicit "unknown" action.
func DecodeResult(raw string) (*Result, error) {
	body := stripFences(raw)

	var w wireResult
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var p wireParams
	if len(w.Params) > 0 && string(w.Params) != "null" {
		if err := json.Unmarshal(w.Params, &p); err != nil {
			return nil, fmt.Errorf("%w: params: %v", ErrInvalidResponse, err)
		}
	}

	switch Action(strings.ToLower(strings.TrimSpace(string(w.Action)))) {
	case ActionQuery:
		return Query(), nil
	case ActionCreate:
		if strings.TrimSpace(p.TaskName) == "" {
			return nil, fmt.Errorf("%w: create without task_name", ErrInvalidResponse)
		}
		cp := CreateParams{
			TaskName:         p.TaskName,
			Quadrant:         entity.Quadrant(p.Quadrant),
			Owners:           p.Owners,
			CreateNativeTask: p.CreateNativeTask,
		}
		if p.DueDate != nil {
			cp.DueDate = strings.TrimSpace(*p.DueDate)
		}
		return NewCreate(cp), nil
	case ActionUpdateStatus:
		if strings.TrimSpace(p.Keyword) == "" {
			return nil, fmt.Errorf("%w: update_status without keyword", ErrInvalidResponse)
		}
		return NewUpdate(p.Keyword, p.TargetStatus), nil
	default:
		return nil, fmt.Errorf("%w: action %q", ErrInvalidResponse, w.Action)
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
