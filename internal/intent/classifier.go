package intent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alekspetrov/dobby/internal/logging"
)

// Source tells which tier produced a Result.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Model is the probabilistic tier. *LLMClient implements it.
type Model interface {
	Classify(ctx context.Context, text, user string, now time.Time) (*Result, error)
}

// Input is one message to classify.
type Input struct {
	Text         string
	SenderName   string
	MentionNames []string
	Now          time.Time
}

// Classifier runs the model first and the deterministic rules when the
// model is missing, fails, or answers outside the schema. It never fails.
type Classifier struct {
	model Model
	now   func() time.Time
	log   *slog.Logger
}

// NewClassifier creates a classifier. model may be nil.
func NewClassifier(model Model) *Classifier {
	if lc, ok := model.(*LLMClient); ok && !lc.Enabled() {
		model = nil
	}
	return &Classifier{
		model: model,
		now:   time.Now,
		log:   logging.WithComponent("intent"),
	}
}

// Classify returns the command for in and the tier that produced it.
func (c *Classifier) Classify(ctx context.Context, in Input) (*Result, Source) {
	now := in.Now
	if now.IsZero() {
		now = c.now()
	}
	log := logging.FromContext(ctx, c.log)

	if c.model != nil && in.Text != "" {
		result, err := c.model.Classify(ctx, in.Text, in.SenderName, now)
		switch {
		case err == nil && result != nil:
			return result, SourceLLM
		case errors.Is(err, ErrInvalidResponse):
			log.Warn("llm answer rejected, using fallback", slog.Any("error", err))
		case err != nil:
			log.Warn("llm unavailable, using fallback", slog.Any("error", err))
		}
	}

	return Fallback(FallbackInput{Text: in.Text, MentionNames: in.MentionNames}), SourceFallback
}
