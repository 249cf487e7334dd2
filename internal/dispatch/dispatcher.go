// Package dispatch runs one chat message through deduplication, mention
// resolution, classification and the task store, and answers the chat.
package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alekspetrov/dobby/internal/comms"
	"github.com/alekspetrov/dobby/internal/entity"
	"github.com/alekspetrov/dobby/internal/intent"
	"github.com/alekspetrov/dobby/internal/logging"
	"github.com/alekspetrov/dobby/internal/mention"
	"github.com/alekspetrov/dobby/internal/taskstore"
)

// Config holds dispatcher settings.
type Config struct {
	DedupWindow int    `yaml:"dedup_window"`
	Timezone    string `yaml:"timezone"`
}

// Classifier turns cleaned text into a command. It never fails.
type Classifier interface {
	Classify(ctx context.Context, in intent.Input) (*intent.Result, intent.Source)
}

// TaskStore is the subset of *taskstore.Adapter the dispatcher drives.
type TaskStore interface {
	Create(ctx context.Context, t taskstore.NewTask) (string, error)
	QueryOpen(ctx context.Context, ownerID string) ([]taskstore.Task, error)
	ResolveAndUpdate(ctx context.Context, ownerID, keyword string, status taskstore.Status) (taskstore.Resolution, error)
}

// NativeTaskCreator writes the secondary copy of a task.
type NativeTaskCreator interface {
	CreateNativeTask(ctx context.Context, t comms.NativeTask) (string, error)
}

// Deps wires a Dispatcher. Native may be nil.
type Deps struct {
	Dedup      comms.Deduplicator
	Resolver   *mention.Resolver
	Bot        *mention.BotIdentity
	Classifier Classifier
	Tasks      TaskStore
	Native     NativeTaskCreator
	Dates      *entity.DateParser
}

// Dispatcher processes each accepted message on its own goroutine.
type Dispatcher struct {
	dedup      comms.Deduplicator
	resolver   *mention.Resolver
	bot        *mention.BotIdentity
	classifier Classifier
	tasks      TaskStore
	native     NativeTaskCreator
	dates      *entity.DateParser
	log        *slog.Logger
	now        func() time.Time

	wg sync.WaitGroup
}

// New creates a Dispatcher.
func New(d Deps) *Dispatcher {
	if d.Dedup == nil {
		d.Dedup = comms.NewDedupWindow(comms.DefaultDedupWindow)
	}
	if d.Resolver == nil {
		d.Resolver = mention.NewResolver(nil)
	}
	if d.Bot == nil {
		d.Bot = mention.NewBotIdentity(nil)
	}
	if d.Dates == nil {
		d.Dates = entity.NewDateParser(time.Local)
	}
	return &Dispatcher{
		dedup:      d.Dedup,
		resolver:   d.Resolver,
		bot:        d.Bot,
		classifier: d.Classifier,
		tasks:      d.Tasks,
		native:     d.Native,
		dates:      d.Dates,
		log:        logging.WithComponent("dispatch"),
		now:        time.Now,
	}
}

// HandleEvent accepts a message for processing and returns immediately.
// It reports false when the message id was already seen. Processing
// outlives ctx's cancellation but keeps its values.
func (d *Dispatcher) HandleEvent(ctx context.Context, msg *comms.IncomingMessage, sink comms.ReplySink) bool {
	if !d.dedup.FirstSeen(msg.ID) {
		d.log.Debug("duplicate message dropped", slog.String("message_id", msg.ID))
		return false
	}

	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.process(ctx, msg, sink)
	}()
	return true
}

// Wait blocks until every accepted message has been processed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, msg *comms.IncomingMessage, sink comms.ReplySink) {
	ctx = logging.ContextWithCorrelationID(ctx, uuid.New().String())
	ctx = logging.ContextWithMessage(ctx, msg.ID, string(msg.ChatKind))
	log := logging.FromContext(ctx, d.log)
	start := d.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing message",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			d.reply(ctx, sink, msg.ID, replyInternalError)
		}
	}()

	if msg.ChatKind == comms.ChatGroup && !d.addressed(ctx, msg) {
		log.Debug("group message not addressed to bot")
		return
	}

	botID := d.bot.ID(ctx)
	resolved := d.resolver.Resolve(msg.Text, msg.Mentions, botID)
	text := resolved.CleanText

	if isHelpRequest(text) {
		d.reply(ctx, sink, msg.ID, helpText)
		return
	}

	result, source := d.classifier.Classify(ctx, intent.Input{
		Text:         text,
		SenderName:   msg.SenderName,
		MentionNames: resolved.Entries.Names(),
		Now:          d.now().In(d.dates.Location()),
	})
	log.Info("message classified",
		slog.String("action", string(result.Action)),
		slog.String("source", string(source)),
		slog.String("text", comms.TruncateText(comms.SingleLine(text), 80)),
	)

	switch result.Action {
	case intent.ActionCreate:
		d.handleCreate(ctx, msg, sink, result.Create, resolved.Entries, botID)
	case intent.ActionQuery:
		d.handleQuery(ctx, msg, sink)
	case intent.ActionUpdateStatus:
		d.handleUpdate(ctx, msg, sink, result.Update)
	default:
		d.reply(ctx, sink, msg.ID, helpText)
	}

	log.Debug("message processed", slog.Duration("elapsed", d.now().Sub(start)))
}

// addressed reports whether a group message mentions the bot. Aliases are
// checked before the id so unaddressed chatter costs no lookups, and a
// message without mentions is rejected outright.
func (d *Dispatcher) addressed(ctx context.Context, msg *comms.IncomingMessage) bool {
	if len(msg.Mentions) == 0 {
		return false
	}
	for _, m := range msg.Mentions {
		if d.resolver.IsAlias(m.Name) {
			return true
		}
	}
	botID := d.bot.ID(ctx)
	if botID == "" {
		return false
	}
	for _, m := range msg.Mentions {
		if m.ID == botID {
			return true
		}
	}
	return false
}

func (d *Dispatcher) handleCreate(ctx context.Context, msg *comms.IncomingMessage, sink comms.ReplySink, p *intent.CreateParams, mentions mention.Mentions, botID string) {
	log := logging.FromContext(ctx, d.log)

	owners := entity.ResolveOwners(p.Owners, mentions, botID, msg.SenderID)
	var due *int64
	if p.DueDate != "" {
		if ms, ok := d.dates.ParseDue(p.DueDate); ok {
			due = &ms
		} else {
			log.Warn("ignoring unparsable due date", slog.String("due_date", p.DueDate))
		}
	}
	quadrant := entity.NormalizeQuadrant(string(p.Quadrant))

	if _, err := d.tasks.Create(ctx, taskstore.NewTask{
		Description: p.TaskName,
		Quadrant:    quadrant,
		Due:         due,
		Owners:      owners,
	}); err != nil {
		log.Error("task create failed", slog.Any("error", err))
		d.reply(ctx, sink, msg.ID, replyCreateFailed)
		return
	}

	text := formatCreated(p.TaskName, quadrant, d.formatDue(due))
	if !p.CreateNativeTask {
		d.reply(ctx, sink, msg.ID, text)
		return
	}

	handle := d.reply(ctx, sink, msg.ID, text+"\n"+nativePending)
	final := text + "\n" + d.createNative(ctx, p.TaskName, owners, due)

	if handle != "" {
		err := sink.Update(ctx, handle, final)
		if err == nil {
			return
		}
		log.Warn("reply update failed, sending a new reply", slog.Any("error", err))
	}
	d.reply(ctx, sink, msg.ID, final)
}

// createNative performs the secondary write and returns its annotation.
// Its failure never undoes the primary record.
func (d *Dispatcher) createNative(ctx context.Context, name string, owners []string, due *int64) string {
	if d.native == nil {
		return nativeFailed
	}
	if _, err := d.native.CreateNativeTask(ctx, comms.NativeTask{Summary: name, Owners: owners, Due: due}); err != nil {
		logging.FromContext(ctx, d.log).Warn("native task create failed", slog.Any("error", err))
		return nativeFailed
	}
	return nativeOK
}

func (d *Dispatcher) handleQuery(ctx context.Context, msg *comms.IncomingMessage, sink comms.ReplySink) {
	tasks, err := d.tasks.QueryOpen(ctx, msg.SenderID)
	if err != nil {
		logging.FromContext(ctx, d.log).Error("task query failed", slog.Any("error", err))
		d.reply(ctx, sink, msg.ID, replyQueryFailed)
		return
	}
	d.reply(ctx, sink, msg.ID, formatTaskList(tasks, d.formatDue))
}

func (d *Dispatcher) handleUpdate(ctx context.Context, msg *comms.IncomingMessage, sink comms.ReplySink, p *intent.UpdateParams) {
	status, ok := taskstore.ParseStatus(p.TargetStatus)
	if !ok {
		status = taskstore.StatusDone
	}

	res, err := d.tasks.ResolveAndUpdate(ctx, msg.SenderID, p.Keyword, status)
	if err != nil {
		logging.FromContext(ctx, d.log).Error("task update failed", slog.Any("error", err))
		d.reply(ctx, sink, msg.ID, replyUpdateFailed)
		return
	}
	d.reply(ctx, sink, msg.ID, formatResolution(p.Keyword, res))
}

// reply sends text and returns the handle, or "" when sending failed.
func (d *Dispatcher) reply(ctx context.Context, sink comms.ReplySink, replyTo, text string) string {
	handle, err := sink.Reply(ctx, replyTo, text)
	if err != nil {
		logging.FromContext(ctx, d.log).Error("reply failed", slog.Any("error", err))
		return ""
	}
	return handle
}

func (d *Dispatcher) formatDue(due *int64) string {
	if due == nil {
		return ""
	}
	return d.dates.FormatDue(*due)
}

var helpKeywords = map[string]struct{}{
	"help": {}, "帮助": {}, "/start": {}, "/help": {}, "怎么用": {},
}

func isHelpRequest(text string) bool {
	if text == "" {
		return true
	}
	_, ok := helpKeywords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
