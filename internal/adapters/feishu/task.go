package feishu

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alekspetrov/dobby/internal/comms"
)

type taskMember struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Role string `json:"role"`
}

type taskDue struct {
	Timestamp string `json:"timestamp"`
	IsAllDay  bool   `json:"is_all_day"`
}

type createTaskRequest struct {
	Summary string       `json:"summary"`
	Members []taskMember `json:"members,omitempty"`
	Due     *taskDue     `json:"due,omitempty"`
}

// CreateNativeTask creates a platform task with the owners as assignees
// and returns its guid.
func (c *Client) CreateNativeTask(ctx context.Context, t comms.NativeTask) (string, error) {
	body := createTaskRequest{Summary: t.Summary}
	for _, id := range t.Owners {
		body.Members = append(body.Members, taskMember{ID: id, Type: "user", Role: "assignee"})
	}
	if t.Due != nil {
		body.Due = &taskDue{Timestamp: strconv.FormatInt(*t.Due, 10)}
	}

	var out struct {
		Task struct {
			GUID string `json:"guid"`
		} `json:"task"`
	}
	err := c.call(ctx, "create task", http.MethodPost, "/task/v2/tasks",
		url.Values{"user_id_type": {"open_id"}}, body, &out)
	if err != nil {
		return "", err
	}
	return out.Task.GUID, nil
}
