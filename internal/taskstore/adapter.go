package taskstore

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/alekspetrov/dobby/internal/entity"
	"github.com/alekspetrov/dobby/internal/intent"
	"github.com/alekspetrov/dobby/internal/logging"
)

// Outcome is the result kind of a keyword-driven status change.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeUpdated
	OutcomeAmbiguous
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Resolution reports what a keyword resolved to. Task is set when the
// outcome is OutcomeUpdated; Candidates lists the competing tasks when it
// is OutcomeAmbiguous.
type Resolution struct {
	Outcome    Outcome
	Task       *Task
	Candidates []Task
}

// NewTask is the input of Create.
type NewTask struct {
	Description string
	Quadrant    entity.Quadrant
	Due         *int64
	Owners      []string
}

// Adapter implements task operations on top of a RecordStore.
type Adapter struct {
	store   RecordStore
	matcher Matcher
	log     *slog.Logger
}

// NewAdapter creates an adapter. matcher may be nil, in which case
// keyword resolution is purely literal.
func NewAdapter(store RecordStore, matcher Matcher) *Adapter {
	return &Adapter{
		store:   store,
		matcher: matcher,
		log:     logging.WithComponent("taskstore"),
	}
}

// Create writes a new todo task and returns its record id.
func (a *Adapter) Create(ctx context.Context, t NewTask) (string, error) {
	q := t.Quadrant
	if !q.Valid() {
		q = entity.DefaultQuadrant
	}
	id, err := a.store.Create(ctx, encodeTask(t.Description, q, StatusTodo, t.Owners, t.Due))
	if err != nil {
		return "", storeErr("create", err)
	}
	logging.FromContext(ctx, a.log).Info("task created",
		slog.String("record_id", id),
		slog.String("quadrant", string(q)),
		slog.Int("owners", len(t.Owners)),
	)
	return id, nil
}

// QueryOpen lists the owner's tasks that are not done, latest due date
// first. Tasks without a due date sort last.
func (a *Adapter) QueryOpen(ctx context.Context, ownerID string) ([]Task, error) {
	records, err := a.store.Search(ctx)
	if err != nil {
		return nil, storeErr("search", err)
	}

	var open []Task
	for _, r := range records {
		t := decodeTask(r)
		if t.Status == StatusDone || !t.OwnedBy(ownerID) {
			continue
		}
		open = append(open, t)
	}

	sort.SliceStable(open, func(i, j int) bool {
		return open[i].DueOrZero() > open[j].DueOrZero()
	})
	return open, nil
}

// ResolveAndComplete marks the owner's task matching keyword as done.
func (a *Adapter) ResolveAndComplete(ctx context.Context, ownerID, keyword string) (Resolution, error) {
	return a.ResolveAndUpdate(ctx, ownerID, keyword, StatusDone)
}

// ResolveAndUpdate moves the owner's open task matching keyword to status.
// The semantic matcher is consulted first; when it is absent, fails, or
// names a task outside the candidate set, literal substring matching runs.
// Several literal matches resolve only when one description equals the
// keyword exactly.
func (a *Adapter) ResolveAndUpdate(ctx context.Context, ownerID, keyword string, status Status) (Resolution, error) {
	log := logging.FromContext(ctx, a.log)
	keyword = strings.TrimSpace(keyword)

	open, err := a.QueryOpen(ctx, ownerID)
	if err != nil {
		return Resolution{}, err
	}
	if len(open) == 0 || keyword == "" {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}

	target := a.semanticMatch(ctx, log, keyword, open)
	if target == nil {
		matches := substringMatches(keyword, open)
		switch len(matches) {
		case 0:
			return Resolution{Outcome: OutcomeNotFound}, nil
		case 1:
			target = &matches[0]
		default:
			target = exactMatch(keyword, matches)
			if target == nil {
				return Resolution{Outcome: OutcomeAmbiguous, Candidates: matches}, nil
			}
		}
	}

	if err := a.UpdateStatus(ctx, target.RecordID, status); err != nil {
		return Resolution{}, err
	}
	updated := *target
	updated.Status = status
	return Resolution{Outcome: OutcomeUpdated, Task: &updated}, nil
}

// UpdateStatus writes status to a record. Writing the status a record
// already has succeeds and changes nothing.
func (a *Adapter) UpdateStatus(ctx context.Context, recordID string, status Status) error {
	if err := a.store.Update(ctx, recordID, Fields{FieldStatus: status.Label()}); err != nil {
		return storeErr("update", err)
	}
	logging.FromContext(ctx, a.log).Info("task status updated",
		slog.String("record_id", recordID),
		slog.String("status", string(status)),
	)
	return nil
}

func (a *Adapter) semanticMatch(ctx context.Context, log *slog.Logger, keyword string, open []Task) *Task {
	if a.matcher == nil {
		return nil
	}

	candidates := make([]intent.Candidate, 0, len(open))
	for _, t := range open {
		candidates = append(candidates, intent.Candidate{ID: t.RecordID, Name: t.Description, Status: t.Status.Label()})
	}

	id, err := a.matcher.Match(ctx, keyword, candidates)
	if err != nil {
		if !errors.Is(err, intent.ErrLLMUnavailable) {
			log.Warn("semantic match failed", slog.Any("error", err))
		}
		return nil
	}
	for i := range open {
		if open[i].RecordID == id {
			return &open[i]
		}
	}
	if id != "" {
		log.Warn("semantic match returned unknown id", slog.String("record_id", id))
	}
	return nil
}

func substringMatches(keyword string, tasks []Task) []Task {
	kw := strings.ToLower(keyword)
	var out []Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Description), kw) {
			out = append(out, t)
		}
	}
	return out
}

func exactMatch(keyword string, tasks []Task) *Task {
	var found *Task
	for i := range tasks {
		if strings.EqualFold(strings.TrimSpace(tasks[i].Description), keyword) {
			if found != nil {
				return nil
			}
			found = &tasks[i]
		}
	}
	return found
}
