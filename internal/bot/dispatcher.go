// Package bot turns chat events into catalog lookups and workflows.
//
// The Dispatcher is the front end: commands and buttons are honoured in
// any state, idle senders' free text is a search, and everything else is
// handed to the per-sender state machine in controller.go. Handle never
// sends anything itself; it returns the replies for the caller to deliver.
package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/supplierbot/internal/catalog"
	"github.com/dmitrijs2005/supplierbot/internal/filex"
	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/dmitrijs2005/supplierbot/internal/metrics"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/sessions"
	"github.com/google/uuid"
)

// Workflows performs the catalog writes. Implemented by *workflow.Executor.
type Workflows interface {
	Create(ctx context.Context, name, note string, image []byte) (models.Entry, error)
	Rename(ctx context.Context, oldName, newName string) (models.Entry, error)
	Annotate(ctx context.Context, name, note string) (models.Entry, error)
	Illustrate(ctx context.Context, name string, image []byte) (models.Entry, error)
	Delete(ctx context.Context, name string) (models.Entry, error)
	Refresh(ctx context.Context) (int, error)
}

// ImageSource fetches the bytes of an image attachment. Implemented by the
// transports.
type ImageSource interface {
	FetchImage(ctx context.Context, ref models.ImageRef) ([]byte, error)
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Cache     *catalog.Cache
	Workflows Workflows
	Sessions  *sessions.Store
	Staging   *filex.Staging
	Images    ImageSource
	Logger    logging.Logger
	Metrics   *metrics.Metrics
}

type Dispatcher struct {
	cache     *catalog.Cache
	workflows Workflows
	sessions  *sessions.Store
	staging   *filex.Staging
	images    ImageSource
	logger    logging.Logger
	metrics   *metrics.Metrics
}

func NewDispatcher(d Deps) *Dispatcher {
	return &Dispatcher{
		cache:     d.Cache,
		workflows: d.Workflows,
		sessions:  d.Sessions,
		staging:   d.Staging,
		images:    d.Images,
		logger:    d.Logger,
		metrics:   d.Metrics,
	}
}

// turn is the handling of one event.
type turn struct {
	sender  string
	log     logging.Logger
	replies []models.Reply
}

func (t *turn) say(format string, args ...any) {
	t.replies = append(t.replies, models.Reply{Text: fmt.Sprintf(format, args...)})
}

func (t *turn) reply(r models.Reply) {
	t.replies = append(t.replies, r)
}

// ask sends a workflow prompt with a cancel button.
func (t *turn) ask(text string) {
	t.replies = append(t.replies, models.Reply{Text: text, Choices: cancelOnly})
}

// Handle processes one event and returns the replies to send to its sender.
func (d *Dispatcher) Handle(ctx context.Context, ev models.Event) []models.Reply {
	t := &turn{
		sender: ev.SenderID,
		log:    d.logger.With("sender", ev.SenderID, "event_id", uuid.NewString()),
	}

	switch {
	case ev.Choice != "":
		d.metrics.Event("choice")
		t.log.Debug(ctx, "choice received", "token", ev.Choice)
		d.choice(ctx, t, ev.Choice)

	case ev.Image != nil:
		d.metrics.Event("image")
		t.log.Debug(ctx, "image received")
		d.image(ctx, t, *ev.Image)

	case strings.HasPrefix(strings.TrimSpace(ev.Text), "/"):
		d.metrics.Event("command")
		name, args := parseCommand(ev.Text)
		t.log.Debug(ctx, "command received", "command", name)
		d.command(ctx, t, name, args)

	case strings.TrimSpace(ev.Text) != "":
		d.metrics.Event("text")
		d.text(ctx, t, ev.Text)
	}

	return t.replies
}

// parseCommand splits "/cmd@bot args" into "cmd" and "args".
func parseCommand(text string) (string, string) {
	head, args := strings.TrimSpace(text), ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], head[i+1:]
	}
	head = strings.TrimPrefix(head, "/")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(args)
}

func (d *Dispatcher) command(ctx context.Context, t *turn, name, args string) {
	switch name {
	case "start", "help":
		t.reply(helpReply())
	case "cancel":
		d.cancel(ctx, t)
	case "refresh":
		d.refresh(ctx, t)
	case "supplier":
		if args == "" {
			t.say("Usage: /supplier [keyword]")
			return
		}
		d.search(t, args)
	case "add":
		d.startCreate(ctx, t, args)
	case "delete":
		d.startDelete(ctx, t, args)
	case "editname":
		d.startTargeted(ctx, t, sessions.RenameAwaitingOld, args)
	case "editinfo":
		d.startTargeted(ctx, t, sessions.AnnotateAwaitingTarget, args)
	case "editphoto":
		d.startTargeted(ctx, t, sessions.IllustrateAwaitingTarget, args)
	default:
		t.say("Unknown command /%s. Send /help for the list.", esc(name))
	}
}

func (d *Dispatcher) choice(ctx context.Context, t *turn, token string) {
	switch token {
	case TokenMainMenu:
		t.reply(helpReply())
	case TokenAdminMenu:
		t.reply(adminReply())
	case TokenCancel:
		d.cancel(ctx, t)
	case TokenRefresh:
		d.refresh(ctx, t)
	case TokenAdd:
		d.startCreate(ctx, t, "")
	case TokenRename:
		d.startTargeted(ctx, t, sessions.RenameAwaitingOld, "")
	case TokenAnnotate:
		d.startTargeted(ctx, t, sessions.AnnotateAwaitingTarget, "")
	case TokenImage:
		d.startTargeted(ctx, t, sessions.IllustrateAwaitingTarget, "")
	case TokenDelete:
		d.startDelete(ctx, t, "")
	default:
		if name, ok := strings.CutPrefix(token, TokenViewPrefix); ok {
			d.view(t, name)
			return
		}
		if digest, ok := strings.CutPrefix(token, TokenHashPrefix); ok {
			d.viewDigest(t, digest)
			return
		}
		t.log.Warn(ctx, "unknown choice token", "token", token)
		t.say("This button is no longer valid.")
	}
}

// text routes free text to the sender's workflow or, when idle, to search.
func (d *Dispatcher) text(ctx context.Context, t *turn, text string) {
	sess, busy := d.sessions.Get(t.sender)
	if !busy {
		d.search(t, text)
		return
	}
	d.step(ctx, t, sess, strings.TrimSpace(text))
}

func (d *Dispatcher) image(ctx context.Context, t *turn, ref models.ImageRef) {
	sess, busy := d.sessions.Get(t.sender)
	if !busy {
		t.say("🤔 Pictures are used when adding a supplier or changing its picture. Send /add or /editphoto first.")
		return
	}
	if !sess.Mode.AwaitsImage() {
		t.ask("⚠️ I was expecting text.\n" + prompt(sess, d.currentNote(sess)))
		return
	}
	d.imageStep(ctx, t, sess, ref)
}

func (d *Dispatcher) search(t *turn, keyword string) {
	matches := d.cache.Snapshot().FindMatches(keyword)
	switch len(matches) {
	case 0:
		t.say("❌ Nothing found for \"%s\".", esc(strings.TrimSpace(keyword)))
	case 1:
		t.reply(card(matches[0]))
	default:
		t.reply(matchesReply(matches))
	}
}

// view answers a search result button. It does not touch the session.
func (d *Dispatcher) view(t *turn, name string) {
	e, ok := d.cache.Snapshot().FindExact(name)
	if !ok {
		t.say("❌ \"%s\" is no longer in the catalog.", esc(name))
		return
	}
	t.reply(card(e))
}

func (d *Dispatcher) viewDigest(t *turn, digest string) {
	for _, e := range d.cache.Snapshot().Entries() {
		if nameDigest(e.Name) == digest {
			t.reply(card(e))
			return
		}
	}
	t.say("❌ That supplier is no longer in the catalog.")
}

func (d *Dispatcher) cancel(ctx context.Context, t *turn) {
	if d.sessions.Delete(t.sender) {
		t.log.Info(ctx, "workflow cancelled")
		t.say("🚫 The current workflow was cancelled.")
		return
	}
	t.say("🚫 Nothing to cancel.")
}

func (d *Dispatcher) refresh(ctx context.Context, t *turn) {
	n, err := d.workflows.Refresh(ctx)
	if err != nil {
		t.log.Error(ctx, "refresh failed", "error", err)
		t.say("❌ Could not reload the catalog: %s", esc(err.Error()))
		return
	}
	t.say("✅ Catalog reloaded, %d suppliers.", n)
}
