package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/sessions"
	"github.com/dmitrijs2005/supplierbot/internal/workflow"
)

// begin replaces the sender's session with a fresh one in mode and asks for
// the first input.
func (d *Dispatcher) begin(ctx context.Context, t *turn, sess sessions.Session, lead string) {
	sess.Started = time.Now()
	d.sessions.Put(t.sender, sess)
	t.log.Info(ctx, "workflow started", "workflow", sess.Mode.Workflow(), "mode", string(sess.Mode))
	t.ask(lead + prompt(sess, d.currentNote(sess)))
}

// startCreate starts the create workflow. A usable name argument is kept and
// asked for again only if it turns out to be taken.
func (d *Dispatcher) startCreate(ctx context.Context, t *turn, arg string) {
	sess := sessions.Session{Mode: sessions.CreateAwaitingImage}
	lead := ""

	if arg != "" {
		name, err := d.checkNewName(arg)
		if err != nil {
			lead = rejection(err) + "\n"
		} else {
			sess.Name = name
		}
	}

	d.begin(ctx, t, sess, lead)
}

// startDelete deletes at once when the argument resolves, otherwise waits
// for a name.
func (d *Dispatcher) startDelete(ctx context.Context, t *turn, arg string) {
	if arg != "" {
		if e, ok := d.cache.Snapshot().FindExact(arg); ok {
			d.sessions.Delete(t.sender)
			d.finish(ctx, t, sessions.WorkflowDelete, e.Name)
			return
		}
		d.begin(ctx, t, sessions.Session{Mode: sessions.DeleteAwaitingName}, notFound(arg)+"\n")
		return
	}
	d.begin(ctx, t, sessions.Session{Mode: sessions.DeleteAwaitingName}, "")
}

// startTargeted starts rename, annotate or illustrate. A resolving argument
// skips the target step.
func (d *Dispatcher) startTargeted(ctx context.Context, t *turn, mode sessions.Mode, arg string) {
	if arg == "" {
		d.begin(ctx, t, sessions.Session{Mode: mode}, "")
		return
	}

	e, ok := d.cache.Snapshot().FindExact(arg)
	if !ok {
		d.begin(ctx, t, sessions.Session{Mode: mode}, notFound(arg)+"\n")
		return
	}
	d.begin(ctx, t, sessions.Session{Mode: nextAfterTarget(mode), Name: e.Name}, "")
}

func nextAfterTarget(mode sessions.Mode) sessions.Mode {
	switch mode {
	case sessions.RenameAwaitingOld:
		return sessions.RenameAwaitingNew
	case sessions.AnnotateAwaitingTarget:
		return sessions.AnnotateAwaitingNote
	case sessions.IllustrateAwaitingTarget:
		return sessions.IllustrateAwaitingImage
	}
	return mode
}

// step advances the sender's workflow with a text input.
func (d *Dispatcher) step(ctx context.Context, t *turn, sess sessions.Session, text string) {
	switch sess.Mode {
	case sessions.CreateAwaitingImage, sessions.IllustrateAwaitingImage:
		t.ask("⚠️ I was expecting a picture.\n" + prompt(sess, ""))

	case sessions.CreateAwaitingName:
		name, err := d.checkNewName(text)
		if err != nil {
			d.sessions.Put(t.sender, sess)
			t.ask(rejection(err) + "\n" + prompt(sess, ""))
			return
		}
		sess.Name = name
		sess.Mode = sessions.CreateAwaitingNote
		d.sessions.Put(t.sender, sess)
		t.ask(prompt(sess, ""))

	case sessions.CreateAwaitingNote:
		image, err := d.staging.Read(sess.ImagePath)
		if err != nil {
			t.log.Error(ctx, "staged image lost", "path", sess.ImagePath, "error", err)
			d.sessions.Delete(t.sender)
			t.say("❌ The picture could not be read back, please start again with /add.")
			return
		}
		e, err := d.workflows.Create(ctx, sess.Name, text, image)
		if errors.Is(err, common.ErrorAlreadyExists) {
			// taken meanwhile; keep the picture and ask for another name
			sess.Mode = sessions.CreateAwaitingName
			sess.Name = ""
			d.sessions.Put(t.sender, sess)
			t.ask(rejection(err) + "\n" + prompt(sess, ""))
			return
		}
		d.conclude(ctx, t, sess, err, fmt.Sprintf("✅ Added **%s**.", esc(e.Name)))

	case sessions.RenameAwaitingOld, sessions.AnnotateAwaitingTarget, sessions.IllustrateAwaitingTarget:
		e, ok := d.cache.Snapshot().FindExact(text)
		if !ok {
			d.sessions.Put(t.sender, sess)
			t.ask(notFound(text) + "\n" + prompt(sess, ""))
			return
		}
		sess.Name = e.Name
		sess.Mode = nextAfterTarget(sess.Mode)
		d.sessions.Put(t.sender, sess)
		t.ask(prompt(sess, e.Note))

	case sessions.RenameAwaitingNew:
		e, err := d.workflows.Rename(ctx, sess.Name, text)
		if isRejection(err) {
			d.sessions.Put(t.sender, sess)
			t.ask(rejection(err) + "\n" + prompt(sess, ""))
			return
		}
		d.conclude(ctx, t, sess, err, fmt.Sprintf("✅ **%s** is now called **%s**.", esc(sess.Name), esc(e.Name)))

	case sessions.AnnotateAwaitingNote:
		e, err := d.workflows.Annotate(ctx, sess.Name, text)
		d.conclude(ctx, t, sess, err, fmt.Sprintf("✅ Note of **%s** updated:\n%s", esc(e.Name), esc(e.Note)))

	case sessions.DeleteAwaitingName:
		e, ok := d.cache.Snapshot().FindExact(text)
		if !ok {
			d.sessions.Put(t.sender, sess)
			t.ask(notFound(text) + "\n" + prompt(sess, ""))
			return
		}
		d.sessions.Delete(t.sender)
		d.finish(ctx, t, sessions.WorkflowDelete, e.Name)
	}
}

// imageStep handles a picture sent while the workflow waits for one.
func (d *Dispatcher) imageStep(ctx context.Context, t *turn, sess sessions.Session, ref models.ImageRef) {
	data, err := d.images.FetchImage(ctx, ref)
	if err != nil {
		t.log.Error(ctx, "fetch image failed", "error", err)
		d.sessions.Put(t.sender, sess)
		t.ask(fmt.Sprintf("❌ Could not download the picture: %s\n", esc(err.Error())) + prompt(sess, ""))
		return
	}

	if sess.Mode == sessions.IllustrateAwaitingImage {
		e, err := d.workflows.Illustrate(ctx, sess.Name, data)
		d.conclude(ctx, t, sess, err, fmt.Sprintf("✅ Picture of **%s** updated.", esc(e.Name)))
		return
	}

	path, err := d.staging.Write(data)
	if err != nil {
		t.log.Error(ctx, "stage image failed", "error", err)
		d.sessions.Put(t.sender, sess)
		t.ask("❌ Could not keep the picture, please send it again.")
		return
	}

	sess.ImagePath = path
	if sess.Name == "" {
		sess.Mode = sessions.CreateAwaitingName
	} else {
		sess.Mode = sessions.CreateAwaitingNote
	}
	d.sessions.Put(t.sender, sess)
	t.ask(prompt(sess, ""))
}

// finish runs a delete resolved outside the session.
func (d *Dispatcher) finish(ctx context.Context, t *turn, workflowName, name string) {
	_, err := d.workflows.Delete(ctx, name)
	if err != nil {
		t.log.Warn(ctx, "workflow ended with error", "workflow", workflowName, "error", err)
	}
	t.reply(outcome(workflowName, err, fmt.Sprintf("🗑️ Deleted **%s**.", esc(name))))
}

// conclude ends the session whatever the result and reports it.
func (d *Dispatcher) conclude(ctx context.Context, t *turn, sess sessions.Session, err error, success string) {
	d.sessions.Delete(t.sender)

	wf := sess.Mode.Workflow()
	if err != nil {
		t.log.Warn(ctx, "workflow ended with error", "workflow", wf, "error", err)
	}
	t.reply(outcome(wf, err, success))
}

// checkNewName validates a candidate name for create.
func (d *Dispatcher) checkNewName(raw string) (string, error) {
	name, err := workflow.ValidateName(raw)
	if err != nil {
		return "", err
	}
	if _, exists := d.cache.Snapshot().FindExact(name); exists {
		return "", fmt.Errorf("supplier %q: %w", name, common.ErrorAlreadyExists)
	}
	return name, nil
}

func (d *Dispatcher) currentNote(sess sessions.Session) string {
	if sess.Mode != sessions.AnnotateAwaitingNote {
		return ""
	}
	e, _ := d.cache.Snapshot().FindExact(sess.Name)
	return e.Note
}

func isRejection(err error) bool {
	return errors.Is(err, common.ErrorValidation) || errors.Is(err, common.ErrorAlreadyExists)
}

func rejection(err error) string {
	switch {
	case errors.Is(err, common.ErrorAlreadyExists):
		return "⚠️ That name is already taken."
	case errors.Is(err, common.ErrorValidation):
		return fmt.Sprintf("⚠️ Invalid name: %s.", esc(strings.TrimSuffix(err.Error(), ": "+common.ErrorValidation.Error())))
	}
	return "⚠️ " + esc(err.Error())
}

func notFound(name string) string {
	return fmt.Sprintf("❌ No supplier named \"%s\".", esc(strings.TrimSpace(name)))
}

// outcome renders the result of a workflow run.
func outcome(workflowName string, err error, success string) models.Reply {
	if err == nil {
		return models.Reply{Text: success}
	}

	var se *workflow.StepError
	switch {
	case errors.As(err, &se) && se.Inconsistent():
		text := fmt.Sprintf("⚠️ **%s** stopped at step `%s`: %s\nStill in effect: %s.\nThe catalog and the image host disagree, please reconcile them manually.",
			workflowName, se.Step, esc(se.Err.Error()), strings.Join(se.Left, ", "))
		if se.UndoErr != nil {
			text += fmt.Sprintf("\nRollback error: %s", esc(se.UndoErr.Error()))
		}
		return models.Reply{Text: text}

	case errors.As(err, &se):
		return models.Reply{Text: fmt.Sprintf("❌ **%s** failed at step `%s`: %s\nNothing was changed.",
			workflowName, se.Step, esc(se.Err.Error()))}

	case errors.Is(err, common.ErrorNotFound):
		return models.Reply{Text: "❌ The supplier is no longer in the catalog."}

	case isRejection(err):
		return models.Reply{Text: rejection(err)}
	}

	return models.Reply{Text: fmt.Sprintf("❌ **%s** failed: %s", workflowName, esc(err.Error()))}
}
