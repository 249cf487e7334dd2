// Package taskstore reads and writes tasks in an external record store.
// The store is trusted only to create, list and update records; every
// filter, sort and match happens here, in memory.
package taskstore

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alekspetrov/dobby/internal/entity"
)

// Column names of the task table.
const (
	FieldDescription = "任务描述"
	FieldQuadrant    = "四象限"
	FieldStatus      = "状态"
	FieldOwners      = "负责人"
	FieldDue         = "截止日期"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

var statusLabels = map[Status]string{
	StatusTodo:       "待办",
	StatusInProgress: "进行中",
	StatusDone:       "已完成",
}

// Label returns the value written to the status column.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusTodo]
}

// ParseStatus accepts canonical names, column labels and the usual
// synonyms for "done".
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "待办", "open":
		return StatusTodo, true
	case "in_progress", "in progress", "doing", "进行中":
		return StatusInProgress, true
	case "done", "completed", "complete", "finished", "closed", "已完成", "完成":
		return StatusDone, true
	}
	return "", false
}

// Fields is a record's column map as the store sees it.
type Fields map[string]any

// Record is one row of the task table.
type Record struct {
	ID     string
	Fields Fields
}

// Task is a decoded record.
type Task struct {
	RecordID    string
	Description string
	Quadrant    entity.Quadrant
	Status      Status
	Owners      []string
	// Due is epoch milliseconds; nil when the task has no due date.
	Due *int64
}

// DueOrZero is the sort key of the task: its due date, or 0 without one.
func (t Task) DueOrZero() int64 {
	if t.Due == nil {
		return 0
	}
	return *t.Due
}

// OwnedBy reports whether id is among the task's owners.
func (t Task) OwnedBy(id string) bool {
	for _, o := range t.Owners {
		if o == id {
			return true
		}
	}
	return false
}

type ownerRef struct {
	ID string `json:"id"`
}

type textSegment struct {
	Text string `json:"text"`
}

func encodeTask(description string, q entity.Quadrant, status Status, owners []string, due *int64) Fields {
	refs := make([]ownerRef, 0, len(owners))
	for _, id := range owners {
		refs = append(refs, ownerRef{ID: id})
	}
	f := Fields{
		FieldDescription: description,
		FieldQuadrant:    q.Label(),
		FieldStatus:      status.Label(),
		FieldOwners:      refs,
	}
	if due != nil {
		f[FieldDue] = *due
	}
	return f
}

// decodeTask tolerates the shapes the store hands back: text columns may
// be plain strings or rich-text segments, numbers may be floats or
// strings, and person lists may be typed or generic.
func decodeTask(r Record) Task {
	t := Task{
		RecordID:    r.ID,
		Description: textValue(r.Fields[FieldDescription]),
		Quadrant:    entity.NormalizeQuadrant(textValue(r.Fields[FieldQuadrant])),
		Status:      StatusTodo,
	}

	if s, ok := ParseStatus(textValue(r.Fields[FieldStatus])); ok {
		t.Status = s
	}

	var refs []ownerRef
	if reshape(r.Fields[FieldOwners], &refs) {
		for _, ref := range refs {
			if ref.ID != "" {
				t.Owners = append(t.Owners, ref.ID)
			}
		}
	}

	if ms, ok := millisValue(r.Fields[FieldDue]); ok {
		t.Due = &ms
	}
	return t
}

func textValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	var segs []textSegment
	if reshape(v, &segs) {
		var sb strings.Builder
		for _, seg := range segs {
			sb.WriteString(seg.Text)
		}
		return sb.String()
	}
	var seg textSegment
	if reshape(v, &seg) {
		return seg.Text
	}
	return ""
}

func millisValue(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int64:
		return n, n > 0
	case int:
		return int64(n), n > 0
	case float64:
		return int64(n), n > 0
	case string:
		ms, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return ms, err == nil && ms > 0
	}
	var f float64
	if reshape(v, &f) && f > 0 {
		return int64(f), true
	}
	return 0, false
}

// reshape converts a generic JSON-ish value into dst via a JSON round trip.
func reshape(v, dst any) bool {
	if v == nil {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}
