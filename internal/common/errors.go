// Package common defines sentinel errors shared by the catalog, workflow and
// adapter layers of supplierbot. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Lookup errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Input validation (empty or oversized names).
	ErrorValidation = errors.New("validation error")

	// Workflow outcomes. ErrorStepFailed means nothing was left behind;
	// ErrorInconsistent means a remote side effect survived the failure and
	// needs manual reconciliation.
	ErrorStepFailed   = errors.New("workflow step failed")
	ErrorInconsistent = errors.New("inconsistent state")

	// Configuration errors.
	ErrorUnknownDriver = errors.New("unknown driver")
)
