package campaign

import "errors"

var (
	// ErrNotFound means the campaign id resolves to nothing.
	ErrNotFound = errors.New("campaign not found")

	// ErrTemplateMissing means the campaign has no usable template attached.
	ErrTemplateMissing = errors.New("campaign template is missing")

	// ErrNotExecutable means an execute request arrived while the campaign
	// was not in draft or scheduled status. State is left untouched.
	ErrNotExecutable = errors.New("campaign cannot be executed from its current status")

	// ErrNotDraft guards mutation: only draft campaigns may be updated or
	// deleted.
	ErrNotDraft = errors.New("only draft campaigns may be updated or deleted")

	// ErrValidation wraps bad or missing input fields. Nothing is mutated.
	ErrValidation = errors.New("validation failed")
)
