// Package workflow performs the remote writes of the catalog workflows.
//
// Every operation re-resolves its target against the current snapshot,
// runs its steps through apply and rebuilds the cache afterwards. Picture
// effects are compensated where the host allows it; row writes are the
// commit point and are never rewritten behind the operator's back.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/supplierbot/internal/catalog"
	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/imagehost"
	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/dmitrijs2005/supplierbot/internal/metrics"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/sessions"
	"github.com/dmitrijs2005/supplierbot/internal/tabular"
)

// MaxNameBytes bounds entry names so that a search button token
// ("v_" + name) fits the 64 byte callback limit of chat buttons.
const MaxNameBytes = 60

// Step names, as reported in StepError.
const (
	StepUploadImage    = "upload image"
	StepAppendRow      = "append row"
	StepUpdateName     = "update name cell"
	StepRenameImage    = "image rename"
	StepUpdateImageRef = "update image-ref cell"
	StepUpdateNote     = "update note cell"
	StepDeleteRow      = "delete row"
	StepDeleteImage    = "delete image"
)

// ValidateName trims name and checks it is usable as an entry name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is empty: %w", common.ErrorValidation)
	}
	if len(name) > MaxNameBytes {
		return "", fmt.Errorf("name is longer than %d bytes: %w", MaxNameBytes, common.ErrorValidation)
	}
	if strings.ContainsAny(name, "\r\n") {
		return "", fmt.Errorf("name spans several lines: %w", common.ErrorValidation)
	}
	return name, nil
}

type Executor struct {
	store   tabular.Store
	images  imagehost.Host
	cache   *catalog.Cache
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewExecutor(store tabular.Store, images imagehost.Host, cache *catalog.Cache, logger logging.Logger, m *metrics.Metrics) *Executor {
	return &Executor{
		store:   store,
		images:  images,
		cache:   cache,
		logger:  logger,
		metrics: m,
	}
}

func (x *Executor) resolve(name string) (models.Entry, error) {
	e, ok := x.cache.Snapshot().FindExact(name)
	if !ok {
		return models.Entry{}, fmt.Errorf("supplier %q: %w", strings.TrimSpace(name), common.ErrorNotFound)
	}
	return e, nil
}

// Create uploads the picture under name and appends the new row.
func (x *Executor) Create(ctx context.Context, name, note string, image []byte) (models.Entry, error) {
	name, err := ValidateName(name)
	if err != nil {
		return x.reject(ctx, sessions.WorkflowCreate, err)
	}
	if _, exists := x.cache.Snapshot().FindExact(name); exists {
		return x.reject(ctx, sessions.WorkflowCreate, fmt.Errorf("supplier %q: %w", name, common.ErrorAlreadyExists))
	}

	entry := models.Entry{Name: name, Note: note}

	err = x.run(ctx, sessions.WorkflowCreate, name, []step{
		{
			name: StepUploadImage,
			do: func(ctx context.Context) error {
				u, err := x.images.Upload(ctx, name, image)
				entry.ImageRef = u
				return err
			},
			undo: func(ctx context.Context) error {
				return x.images.Delete(ctx, name)
			},
		},
		{
			name: StepAppendRow,
			do: func(ctx context.Context) error {
				return x.store.AppendRow(ctx, entry.Values())
			},
		},
	})
	if err != nil {
		return models.Entry{}, err
	}

	return x.refreshed(entry), nil
}

// Rename changes the name of an entry and moves its picture along.
//
// The name cell is written first. If the picture cannot be moved the row
// keeps the new name and the error matches common.ErrorInconsistent.
func (x *Executor) Rename(ctx context.Context, oldName, newName string) (models.Entry, error) {
	e, err := x.resolve(oldName)
	if err != nil {
		return x.reject(ctx, sessions.WorkflowRename, err)
	}

	newName, err = ValidateName(newName)
	if err != nil {
		return x.reject(ctx, sessions.WorkflowRename, err)
	}
	if newName == e.Name {
		return x.reject(ctx, sessions.WorkflowRename, fmt.Errorf("new name equals the current one: %w", common.ErrorValidation))
	}
	if other, exists := x.cache.Snapshot().FindExact(newName); exists && other.Row != e.Row {
		return x.reject(ctx, sessions.WorkflowRename, fmt.Errorf("supplier %q: %w", newName, common.ErrorAlreadyExists))
	}

	renamed := e
	renamed.Name = newName

	steps := []step{{
		name: StepUpdateName,
		do: func(ctx context.Context) error {
			return x.store.UpdateCell(ctx, e.Row, models.ColumnName, newName)
		},
	}}

	// Without an image ref there is no picture to carry along: moving a
	// missing object fails on every host and would turn a plain rename
	// into an inconsistent one.
	if e.ImageRef != "" {
		steps = append(steps,
			step{
				name: StepRenameImage,
				do: func(ctx context.Context) error {
					u, err := x.images.Rename(ctx, e.Name, newName)
					renamed.ImageRef = u
					return err
				},
				undo: func(ctx context.Context) error {
					_, err := x.images.Rename(ctx, newName, e.Name)
					return err
				},
			},
			step{
				name: StepUpdateImageRef,
				do: func(ctx context.Context) error {
					return x.store.UpdateCell(ctx, e.Row, models.ColumnImageRef, renamed.ImageRef)
				},
			},
		)
	}

	if err := x.run(ctx, sessions.WorkflowRename, e.Name, steps); err != nil {
		return models.Entry{}, err
	}

	return x.refreshed(renamed), nil
}

// Annotate replaces the note of an entry.
func (x *Executor) Annotate(ctx context.Context, name, note string) (models.Entry, error) {
	e, err := x.resolve(name)
	if err != nil {
		return x.reject(ctx, sessions.WorkflowAnnotate, err)
	}

	e.Note = note

	err = x.run(ctx, sessions.WorkflowAnnotate, e.Name, []step{{
		name: StepUpdateNote,
		do: func(ctx context.Context) error {
			return x.store.UpdateCell(ctx, e.Row, models.ColumnNote, note)
		},
	}})
	if err != nil {
		return models.Entry{}, err
	}

	return x.refreshed(e), nil
}

// Illustrate overwrites the picture of an entry and stores its new URL.
func (x *Executor) Illustrate(ctx context.Context, name string, image []byte) (models.Entry, error) {
	e, err := x.resolve(name)
	if err != nil {
		return x.reject(ctx, sessions.WorkflowIllustrate, err)
	}

	err = x.run(ctx, sessions.WorkflowIllustrate, e.Name, []step{
		{
			name: StepUploadImage,
			do: func(ctx context.Context) error {
				u, err := x.images.Upload(ctx, e.Name, image)
				e.ImageRef = u
				return err
			},
		},
		{
			name: StepUpdateImageRef,
			do: func(ctx context.Context) error {
				return x.store.UpdateCell(ctx, e.Row, models.ColumnImageRef, e.ImageRef)
			},
		},
	})
	if err != nil {
		return models.Entry{}, err
	}

	return x.refreshed(e), nil
}

// Delete removes the row of an entry and then its picture.
func (x *Executor) Delete(ctx context.Context, name string) (models.Entry, error) {
	e, err := x.resolve(name)
	if err != nil {
		return x.reject(ctx, sessions.WorkflowDelete, err)
	}

	// The picture is keyed by name, so it is deleted even when the image
	// cell was cleared by hand. Deleting a missing picture is a no-op.
	steps := []step{
		{
			name: StepDeleteRow,
			do: func(ctx context.Context) error {
				return x.store.DeleteRow(ctx, e.Row)
			},
		},
		{
			name: StepDeleteImage,
			do: func(ctx context.Context) error {
				return x.images.Delete(ctx, e.Name)
			},
		},
	}

	if err := x.run(ctx, sessions.WorkflowDelete, e.Name, steps); err != nil {
		return models.Entry{}, err
	}

	return e, nil
}

// Refresh rebuilds the cache on request and reports the entry count.
func (x *Executor) Refresh(ctx context.Context) (int, error) {
	return x.cache.Rebuild(ctx)
}

// run applies the steps, rebuilds the cache whatever the outcome and
// records the result.
func (x *Executor) run(ctx context.Context, workflow, target string, steps []step) error {
	err := apply(ctx, workflow, steps)

	// a failed rebuild keeps the previous snapshot and is logged by the cache
	_, _ = x.cache.Rebuild(ctx)

	if err == nil {
		x.metrics.Workflow(workflow, metrics.OutcomeOK)
		x.logger.Info(ctx, "workflow completed", "workflow", workflow, "supplier", target)
		return nil
	}

	outcome := metrics.OutcomeFailed
	if errors.Is(err, common.ErrorInconsistent) {
		outcome = metrics.OutcomeInconsistent
	}
	x.metrics.Workflow(workflow, outcome)
	x.logger.Error(ctx, "workflow failed", "workflow", workflow, "supplier", target, "outcome", outcome, "error", err)

	return err
}

func (x *Executor) reject(ctx context.Context, workflow string, err error) (models.Entry, error) {
	x.metrics.Workflow(workflow, metrics.OutcomeRejected)
	x.logger.Debug(ctx, "workflow rejected", "workflow", workflow, "error", err)
	return models.Entry{}, err
}

// refreshed returns the cached form of e when the rebuild picked it up.
func (x *Executor) refreshed(e models.Entry) models.Entry {
	if got, ok := x.cache.Snapshot().FindExact(e.Name); ok {
		return got
	}
	return e
}
