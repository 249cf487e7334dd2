package taskstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alekspetrov/dobby/internal/entity"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sub", "tasks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	due := int64(1767110400000)

	id, err := s.Create(ctx, encodeTask("写周报", entity.UrgentImportant, StatusTodo, []string{"u1"}, &due))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	records, err := s.Search(ctx)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("records = %+v", records)
	}

	task := decodeTask(records[0])
	if task.Description != "写周报" || task.Quadrant != entity.UrgentImportant || task.Status != StatusTodo {
		t.Errorf("task = %+v", task)
	}
	if task.Due == nil || *task.Due != due {
		t.Errorf("due = %v, want %d", task.Due, due)
	}
	if len(task.Owners) != 1 || task.Owners[0] != "u1" {
		t.Errorf("owners = %v", task.Owners)
	}
}

func TestSQLiteStoreUpdateMerges(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id, err := s.Create(ctx, encodeTask("修复登录", entity.DefaultQuadrant, StatusTodo, []string{"u1"}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, id, Fields{FieldStatus: StatusDone.Label()}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	records, _ := s.Search(ctx)
	task := decodeTask(records[0])
	if task.Status != StatusDone || task.Description != "修复登录" {
		t.Errorf("task after update = %+v", task)
	}

	if err := s.Update(ctx, "rec-missing", Fields{FieldStatus: "已完成"}); err == nil {
		t.Error("updating a missing record should fail")
	}
}

func TestSQLiteStoreWithAdapter(t *testing.T) {
	s := newTestSQLite(t)
	a := NewAdapter(s, nil)
	ctx := context.Background()

	early, late := int64(1000), int64(2000)
	for _, nt := range []NewTask{
		{Description: "早", Due: &early, Owners: []string{"u1"}},
		{Description: "无日期", Owners: []string{"u1"}},
		{Description: "晚", Due: &late, Owners: []string{"u1"}},
	} {
		if _, err := a.Create(ctx, nt); err != nil {
			t.Fatal(err)
		}
	}

	open, err := a.QueryOpen(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, task := range open {
		names = append(names, task.Description)
	}
	if len(names) != 3 || names[0] != "晚" || names[1] != "早" || names[2] != "无日期" {
		t.Errorf("order = %v", names)
	}

	res, err := a.ResolveAndComplete(ctx, "u1", "晚")
	if err != nil || res.Outcome != OutcomeUpdated {
		t.Fatalf("ResolveAndComplete = %+v, %v", res, err)
	}
	open, _ = a.QueryOpen(ctx, "u1")
	if len(open) != 2 {
		t.Errorf("open after completion = %d", len(open))
	}
}
