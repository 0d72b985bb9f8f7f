// Package sessions holds the per-sender conversation state.
//
// A sender with a session is busy in a workflow; a sender without one is
// idle and their free text is a search.
package sessions

import "time"

// Mode names the active workflow and the input it waits for.
type Mode string

const (
	CreateAwaitingImage      Mode = "create-awaiting-image"
	CreateAwaitingName       Mode = "create-awaiting-name"
	CreateAwaitingNote       Mode = "create-awaiting-note"
	RenameAwaitingOld        Mode = "rename-awaiting-old"
	RenameAwaitingNew        Mode = "rename-awaiting-new"
	AnnotateAwaitingTarget   Mode = "annotate-awaiting-target"
	AnnotateAwaitingNote     Mode = "annotate-awaiting-note"
	IllustrateAwaitingTarget Mode = "illustrate-awaiting-target"
	IllustrateAwaitingImage  Mode = "illustrate-awaiting-image"
	DeleteAwaitingName       Mode = "delete-awaiting-name"
)

// Workflow names.
const (
	WorkflowCreate     = "create"
	WorkflowRename     = "rename"
	WorkflowAnnotate   = "annotate"
	WorkflowIllustrate = "illustrate"
	WorkflowDelete     = "delete"
)

// Workflow returns the name of the workflow the mode belongs to.
func (m Mode) Workflow() string {
	switch m {
	case CreateAwaitingImage, CreateAwaitingName, CreateAwaitingNote:
		return WorkflowCreate
	case RenameAwaitingOld, RenameAwaitingNew:
		return WorkflowRename
	case AnnotateAwaitingTarget, AnnotateAwaitingNote:
		return WorkflowAnnotate
	case IllustrateAwaitingTarget, IllustrateAwaitingImage:
		return WorkflowIllustrate
	case DeleteAwaitingName:
		return WorkflowDelete
	default:
		return ""
	}
}

// AwaitsImage reports whether the next expected input is a picture.
func (m Mode) AwaitsImage() bool {
	return m == CreateAwaitingImage || m == IllustrateAwaitingImage
}

// Session is the state of one sender's workflow.
type Session struct {
	Mode Mode

	// Name is the candidate name (create) or the resolved target
	// (rename, annotate, illustrate).
	Name string

	// ImagePath is the staged picture waiting to be uploaded (create).
	ImagePath string

	Started time.Time
}
