package intent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alekspetrov/dobby/internal/entity"
)

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Result
		wantErr bool
	}{
		{
			name: "create with label quadrant",
			raw:  `{"action":"create","params":{"task_name":"修复登录","quadrant":"重要且紧急","due_date":"2025-06-01","owners":["张三"]}}`,
			want: &Result{Action: ActionCreate, Create: &CreateParams{
				TaskName: "修复登录", Quadrant: entity.UrgentImportant, DueDate: "2025-06-01", Owners: []string{"张三"},
			}},
		},
		{
			name: "create defaults quadrant",
			raw:  `{"action":"create","params":{"task_name":"Read docs","quadrant":"whenever","due_date":null}}`,
			want: &Result{Action: ActionCreate, Create: &CreateParams{
				TaskName: "Read docs", Quadrant: entity.NotUrgentImportant, Owners: []string{},
			}},
		},
		{
			name: "code fenced",
			raw:  "```json\n{\"action\":\"query\",\"params\":{}}\n```",
			want: &Result{Action: ActionQuery},
		},
		{
			name: "query without params",
			raw:  `{"action":"QUERY"}`,
			want: &Result{Action: ActionQuery},
		},
		{
			name: "update defaults target",
			raw:  `{"action":"update_status","params":{"keyword":"登录"}}`,
			want: &Result{Action: ActionUpdateStatus, Update: &UpdateParams{Keyword: "登录", TargetStatus: "completed"}},
		},
		{
			name: "native task flag",
			raw:  `{"action":"create","params":{"task_name":"交周报","create_native_task":true}}`,
			want: &Result{Action: ActionCreate, Create: &CreateParams{
				TaskName: "交周报", Quadrant: entity.NotUrgentImportant, Owners: []string{}, CreateNativeTask: true,
			}},
		},
		{name: "unknown action", raw: `{"action":"unknown","params":{}}`, wantErr: true},
		{name: "unrecognized action", raw: `{"action":"delete","params":{}}`, wantErr: true},
		{name: "create without name", raw: `{"action":"create","params":{"task_name":" "}}`, wantErr: true},
		{name: "update without keyword", raw: `{"action":"update_status","params":{}}`, wantErr: true},
		{name: "owners wrong type", raw: `{"action":"create","params":{"task_name":"x","owners":"bob"}}`, wantErr: true},
		{name: "not json", raw: `Sure! Here is the JSON`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeResult(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResponse) {
					t.Fatalf("DecodeResult() error = %v, want ErrInvalidResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeResult() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeResult() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResultMarshalJSON(t *testing.T) {
	r := NewUpdate("登录", "")
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"action":"update_status","params":{"keyword":"登录","target_status":"completed"}}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	back, err := DecodeResult(string(data))
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if diff := cmp.Diff(r, back); diff != "" {
		t.Errorf("re-decoded mismatch (-want +got):\n%s", diff)
	}

	data, _ = json.Marshal(Query())
	if string(data) != `{"action":"query","params":{}}` {
		t.Errorf("query marshal = %s", data)
	}
}
