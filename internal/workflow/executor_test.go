package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/supplierbot/internal/catalog"
	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/imagehost/memhost"
	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/dmitrijs2005/supplierbot/internal/metrics"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/tabular/memstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *memstore.Store
	images  *memhost.Host
	cache   *catalog.Cache
	metrics *metrics.Metrics
	x       *Executor
}

func newFixture(t *testing.T, rows ...[]string) *fixture {
	t.Helper()
	f := &fixture{
		store:   memstore.New(rows...),
		images:  memhost.New(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.cache = catalog.NewCache(f.store, logging.Discard(), f.metrics)
	_, err := f.cache.Rebuild(context.Background())
	require.NoError(t, err)
	f.x = NewExecutor(f.store, f.images, f.cache, logging.Discard(), f.metrics)
	return f
}

// seedImage puts a picture on the host as if a previous create uploaded it.
func (f *fixture) seedImage(t *testing.T, name string) string {
	t.Helper()
	u, err := f.images.Upload(context.Background(), name, []byte("img:"+name))
	require.NoError(t, err)
	return u
}

func (f *fixture) outcome(workflow, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.Workflows.WithLabelValues(workflow, outcome))
}

func TestValidateName(t *testing.T) {
	got, err := ValidateName("  Zeta ")
	require.NoError(t, err)
	assert.Equal(t, "Zeta", got)

	_, err = ValidateName("   ")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = ValidateName(strings.Repeat("x", MaxNameBytes+1))
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = ValidateName("two\nlines")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = ValidateName(strings.Repeat("x", MaxNameBytes))
	assert.NoError(t, err)
}

func TestCreate_Success(t *testing.T) {
	f := newFixture(t, []string{"Alize", "", ""})
	ctx := context.Background()

	e, err := f.x.Create(ctx, "Zeta", "test", []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, "Zeta", e.Name)
	assert.Equal(t, "test", e.Note)
	assert.Equal(t, memhost.URL("Zeta"), e.ImageRef)
	assert.Equal(t, 3, e.Row)

	got, ok := f.cache.Snapshot().FindExact("zeta")
	require.True(t, ok, "cache must be rebuilt after the write")
	assert.Equal(t, e, got)

	data, ok := f.images.Get("Zeta")
	require.True(t, ok)
	assert.Equal(t, []byte("png"), data)

	assert.Equal(t, [][]string{{"Alize", "", ""}, {"Zeta", memhost.URL("Zeta"), "test"}}, f.store.Rows())
	assert.Equal(t, 1.0, f.outcome("create", metrics.OutcomeOK))
}

func TestCreate_RejectsDuplicateAndInvalid(t *testing.T) {
	f := newFixture(t, []string{"Alize", "", ""})
	ctx := context.Background()

	_, err := f.x.Create(ctx, " ALIZE ", "", []byte("png"))
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = f.x.Create(ctx, "", "", []byte("png"))
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.Empty(t, f.images.Calls(), "rejected workflows make no remote calls")
	assert.Len(t, f.store.Rows(), 1)
	assert.Equal(t, 2.0, f.outcome("create", metrics.OutcomeRejected))
}

func TestCreate_UploadFails(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("quota exceeded")
	f.images.FailOn(memhost.OpUpload, boom)

	_, err := f.x.Create(context.Background(), "Zeta", "test", []byte("png"))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepUploadImage, se.Step)
	assert.ErrorIs(t, err, common.ErrorStepFailed)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.store.Rows())
	assert.Equal(t, 1.0, f.outcome("create", metrics.OutcomeFailed))
}

func TestCreate_AppendFailsRemovesUploadedImage(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(memstore.OpAppend, errors.New("permission denied"))

	_, err := f.x.Create(context.Background(), "Zeta", "test", []byte("png"))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepAppendRow, se.Step)
	assert.ErrorIs(t, err, common.ErrorStepFailed)
	assert.Equal(t, 0, f.images.Len(), "uploaded picture must be compensated")
	assert.Equal(t, []string{"upload Zeta", "delete Zeta"}, f.images.Calls())
}

func TestCreate_AppendAndCompensationFail(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(memstore.OpAppend, errors.New("permission denied"))
	f.images.FailOn(memhost.OpDelete, errors.New("host down"))

	_, err := f.x.Create(context.Background(), "Zeta", "test", []byte("png"))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, common.ErrorInconsistent)
	assert.Equal(t, []string{StepUploadImage}, se.Left)
	assert.Equal(t, 1, f.images.Len())
	assert.Equal(t, 1.0, f.outcome("create", metrics.OutcomeInconsistent))
}

func TestCreate_RebuildFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(memstore.OpRead, errors.New("read quota"))

	e, err := f.x.Create(context.Background(), "Zeta", "test", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "Zeta", e.Name)

	_, ok := f.cache.Snapshot().FindExact("Zeta")
	assert.False(t, ok, "previous snapshot is kept")
	assert.Len(t, f.store.Rows(), 1)
}

func TestRename_Success(t *testing.T) {
	f := newFixture(t)
	u := f.seedImage(t, "Zeta")
	require.NoError(t, f.store.AppendRow(context.Background(), []string{"Zeta", u, "note"}))
	_, err := f.cache.Rebuild(context.Background())
	require.NoError(t, err)

	e, err := f.x.Rename(context.Background(), "zeta", "Eta")
	require.NoError(t, err)
	assert.Equal(t, models.Entry{Name: "Eta", ImageRef: memhost.URL("Eta"), Note: "note", Row: 2}, e)

	snap := f.cache.Snapshot()
	_, ok := snap.FindExact("Eta")
	assert.True(t, ok)
	_, ok = snap.FindExact("Zeta")
	assert.False(t, ok)

	_, ok = f.images.Get("Eta")
	assert.True(t, ok)
	_, ok = f.images.Get("Zeta")
	assert.False(t, ok)
}

func TestRename_ImageRenameFailsKeepsNewNameAndReportsInconsistency(t *testing.T) {
	f := newFixture(t)
	u := f.seedImage(t, "Zeta")
	require.NoError(t, f.store.AppendRow(context.Background(), []string{"Zeta", u, ""}))
	_, err := f.cache.Rebuild(context.Background())
	require.NoError(t, err)

	f.images.FailOn(memhost.OpRename, errors.New("rename refused"))

	_, err = f.x.Rename(context.Background(), "Zeta", "Eta")

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepRenameImage, se.Step)
	assert.Equal(t, []string{StepUpdateName}, se.Left)
	assert.ErrorIs(t, err, common.ErrorInconsistent)

	e, ok := f.cache.Snapshot().FindExact("Eta")
	require.True(t, ok, "name cell stays updated")
	assert.Equal(t, u, e.ImageRef, "image-ref still points at the old picture")
}

func TestRename_ImageRefUpdateFailsMovesPictureBack(t *testing.T) {
	f := newFixture(t)
	u := f.seedImage(t, "Zeta")
	require.NoError(t, f.store.AppendRow(context.Background(), []string{"Zeta", u, ""}))
	_, err := f.cache.Rebuild(context.Background())
	require.NoError(t, err)

	f.store.FailOn(memstore.UpdateOp(models.ColumnImageRef), errors.New("quota"))

	_, err = f.x.Rename(context.Background(), "Zeta", "Eta")

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepUpdateImageRef, se.Step)
	assert.Equal(t, []string{StepUpdateName}, se.Left)

	_, ok := f.images.Get("Zeta")
	assert.True(t, ok, "picture renamed back")
	_, ok = f.images.Get("Eta")
	assert.False(t, ok)
}

func TestRename_WithoutPictureOnlyTouchesName(t *testing.T) {
	f := newFixture(t, []string{"Zeta", "", "n"})

	e, err := f.x.Rename(context.Background(), "Zeta", "Eta")
	require.NoError(t, err)
	assert.Equal(t, "Eta", e.Name)
	assert.Empty(t, f.images.Calls())
}

func TestRename_Rejections(t *testing.T) {
	f := newFixture(t, []string{"Alize", "", ""}, []string{"Bora", "", ""})
	ctx := context.Background()

	_, err := f.x.Rename(ctx, "Missing", "Other")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.x.Rename(ctx, "Alize", "bora")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = f.x.Rename(ctx, "Alize", "Alize")
	assert.ErrorIs(t, err, common.ErrorValidation)

	e, err := f.x.Rename(ctx, "Alize", "ALIZE")
	require.NoError(t, err, "changing the casing of its own name is allowed")
	assert.Equal(t, "ALIZE", e.Name)
}

func TestAnnotate(t *testing.T) {
	f := newFixture(t, []string{"Alize", "u", "old"})

	e, err := f.x.Annotate(context.Background(), " alize", "new note")
	require.NoError(t, err)
	assert.Equal(t, "new note", e.Note)
	assert.Equal(t, [][]string{{"Alize", "u", "new note"}}, f.store.Rows())

	_, err = f.x.Annotate(context.Background(), "nobody", "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	f.store.FailOn(memstore.OpUpdate, errors.New("quota"))
	_, err = f.x.Annotate(context.Background(), "Alize", "again")
	assert.ErrorIs(t, err, common.ErrorStepFailed)
}

func TestIllustrate(t *testing.T) {
	f := newFixture(t, []string{"Alize", "", "n"})

	e, err := f.x.Illustrate(context.Background(), "Alize", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, memhost.URL("Alize"), e.ImageRef)

	data, _ := f.images.Get("Alize")
	assert.Equal(t, []byte("new"), data)
	assert.Equal(t, memhost.URL("Alize"), f.store.Rows()[0][1])
}

func TestIllustrate_UpdateFailsAfterOverwriteIsInconsistent(t *testing.T) {
	f := newFixture(t, []string{"Alize", "", "n"})
	f.store.FailOn(memstore.OpUpdate, errors.New("quota"))

	_, err := f.x.Illustrate(context.Background(), "Alize", []byte("new"))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{StepUploadImage}, se.Left)
	assert.ErrorIs(t, err, common.ErrorInconsistent)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	u := f.seedImage(t, "Zeta")
	require.NoError(t, f.store.AppendRow(context.Background(), []string{"Zeta", u, ""}))
	require.NoError(t, f.store.AppendRow(context.Background(), []string{"Eta", "", ""}))
	_, err := f.cache.Rebuild(context.Background())
	require.NoError(t, err)

	_, err = f.x.Delete(context.Background(), "zeta")
	require.NoError(t, err)

	assert.Equal(t, 0, f.images.Len())
	assert.Equal(t, [][]string{{"Eta", "", ""}}, f.store.Rows())

	e, ok := f.cache.Snapshot().FindExact("Eta")
	require.True(t, ok)
	assert.Equal(t, 2, e.Row, "rows shift after a delete")

	_, err = f.x.Delete(context.Background(), "zeta")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete_ImageDeleteFailsLeavesRowDeleted(t *testing.T) {
	f := newFixture(t)
	u := f.seedImage(t, "Zeta")
	require.NoError(t, f.store.AppendRow(context.Background(), []string{"Zeta", u, ""}))
	_, err := f.cache.Rebuild(context.Background())
	require.NoError(t, err)

	f.images.FailOn(memhost.OpDelete, errors.New("host down"))

	_, err = f.x.Delete(context.Background(), "Zeta")
	assert.ErrorIs(t, err, common.ErrorInconsistent)
	assert.Empty(t, f.store.Rows())
	assert.Equal(t, 0, f.cache.Snapshot().Len())
}

func TestDelete_RemovesPictureWhenImageCellIsBlank(t *testing.T) {
	f := newFixture(t, []string{"Zeta", "", "n"})
	f.seedImage(t, "Zeta")

	_, err := f.x.Delete(context.Background(), "Zeta")
	require.NoError(t, err)

	assert.Equal(t, 0, f.images.Len())
	assert.Equal(t, []string{"upload Zeta", "delete Zeta"}, f.images.Calls())
	assert.Empty(t, f.store.Rows())
}

func TestDelete_WithoutPictureSucceeds(t *testing.T) {
	f := newFixture(t, []string{"Zeta", "", "n"})

	_, err := f.x.Delete(context.Background(), "Zeta")
	require.NoError(t, err)
	assert.Equal(t, []string{"delete Zeta"}, f.images.Calls())
	assert.Equal(t, 1.0, f.outcome("delete", metrics.OutcomeOK))
}

func TestExecutor_ReresolvesAtExecution(t *testing.T) {
	f := newFixture(t, []string{"Alize", "", ""}, []string{"Bora", "", ""})

	// someone removed Alize outside the bot
	require.NoError(t, f.store.DeleteRow(context.Background(), 2))
	_, err := f.x.Refresh(context.Background())
	require.NoError(t, err)

	_, err = f.x.Annotate(context.Background(), "Alize", "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	e, err := f.x.Annotate(context.Background(), "Bora", "y")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Row)
	assert.Equal(t, [][]string{{"Bora", "", "y"}}, f.store.Rows())
}
