package flow

import (
	"context"
)

// ResultType classifies what a Step call produced.
type ResultType string

// Result types.
const (
	// TypeForm asks the client to present a form and submit it back.
	TypeForm ResultType = "form"

	// TypeCreateEntry means the flow finished and a config entry was created.
	TypeCreateEntry ResultType = "create_entry"

	// TypeAbort means the flow ended without creating an entry.
	TypeAbort ResultType = "abort"

	// TypeExternal hands the client to an external URL (OAuth authorize
	// endpoint); the flow resumes when the client submits the callback step.
	TypeExternal ResultType = "external"
)

// Well-known step IDs and abort reasons.
const (
	// StepUser is the initial step of every flow.
	StepUser = "user"

	ReasonAlreadyConfigured = "already_configured"
)

// Field describes one input in a form schema.
type Field struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Secret   bool   `json:"secret,omitempty"`
}

// Result is the outcome of a single flow step.
type Result struct {
	Type   ResultType `json:"type"`
	FlowID string     `json:"flow_id"`
	Domain string     `json:"domain"`

	// Form results.
	StepID string            `json:"step_id,omitempty"`
	Schema []Field           `json:"schema,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`

	// Create-entry results.
	Title   string `json:"title,omitempty"`
	EntryID string `json:"entry_id,omitempty"`

	// Abort results.
	Reason string `json:"reason,omitempty"`

	// External results.
	URL string `json:"url,omitempty"`
}

// Flow is implemented by each integration's pairing wizard.
//
// Step advances the flow. stepID is StepUser for a fresh flow, or the
// StepID of the previous form result. input is nil when the client wants
// the form shown without submitting values.
type Flow interface {
	Step(ctx context.Context, fc *Context, stepID string, input map[string]string) Result
}

// Factory creates a fresh Flow instance for one pairing attempt.
type Factory func() Flow

// EntryStore is the slice of the config-entry manager the flow engine
// needs. Defined here so the flow package has no dependency on the entry
// package.
type EntryStore interface {
	// HasUniqueID reports whether an entry with the unique ID exists for the domain.
	HasUniqueID(ctx context.Context, domain, uniqueID string) (bool, error)

	// CreateEntry persists a new entry and sets it up. Returns the entry ID.
	CreateEntry(ctx context.Context, domain, title, uniqueID string, data map[string]any) (string, error)
}

// Context carries per-session state into Flow.Step and provides the
// result constructors. One Context lives for the whole flow session.
type Context struct {
	flowID   string
	domain   string
	uniqueID string
	store    EntryStore
}

// FlowID returns the session's flow ID.
func (c *Context) FlowID() string { return c.flowID }

// SetUniqueID records the unique ID this flow will configure and aborts
// duplicate pairing: if an entry with the ID already exists for the
// domain, ErrAlreadyConfigured is returned and the flow should finish
// with c.Abort(ReasonAlreadyConfigured).
func (c *Context) SetUniqueID(ctx context.Context, uniqueID string) error {
	exists, err := c.store.HasUniqueID(ctx, c.domain, uniqueID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyConfigured
	}
	c.uniqueID = uniqueID
	return nil
}

// ShowForm builds a form result for the given step.
// errs holds per-field or "base" error codes from a failed submission.
func (c *Context) ShowForm(stepID string, schema []Field, errs map[string]string) Result {
	return Result{
		Type:   TypeForm,
		FlowID: c.flowID,
		Domain: c.domain,
		StepID: stepID,
		Schema: schema,
		Errors: errs,
	}
}

// Abort ends the flow without creating an entry.
func (c *Context) Abort(reason string) Result {
	return Result{
		Type:   TypeAbort,
		FlowID: c.flowID,
		Domain: c.domain,
		Reason: reason,
	}
}

// External hands the client to an external authorization URL. The flow
// stays live; the client resumes it by submitting the named step.
func (c *Context) External(stepID, url string) Result {
	return Result{
		Type:   TypeExternal,
		FlowID: c.flowID,
		Domain: c.domain,
		StepID: stepID,
		URL:    url,
	}
}

// CreateEntry persists the pairing result and finishes the flow.
// The unique ID is re-checked first: a concurrent flow may have configured
// the same ID since SetUniqueID, which surfaces as an already-configured
// abort rather than a duplicate entry.
func (c *Context) CreateEntry(ctx context.Context, title string, data map[string]any) Result {
	if c.uniqueID != "" {
		exists, err := c.store.HasUniqueID(ctx, c.domain, c.uniqueID)
		if err == nil && exists {
			return c.Abort(ReasonAlreadyConfigured)
		}
	}

	id, err := c.store.CreateEntry(ctx, c.domain, title, c.uniqueID, data)
	if err != nil {
		return Result{
			Type:   TypeAbort,
			FlowID: c.flowID,
			Domain: c.domain,
			Reason: "entry_creation_failed",
		}
	}
	return Result{
		Type:    TypeCreateEntry,
		FlowID:  c.flowID,
		Domain:  c.domain,
		Title:   title,
		EntryID: id,
	}
}
