// Package flow implements the config-flow engine: multi-step pairing
// wizards that collect credentials for an integration and end in a config
// entry.
//
// A flow is a state machine driven by the client. Each Step call returns a
// Result that is either a form to present (field schema plus per-field
// errors), an external-auth hand-off, an abort, or a created entry.
// Integrations implement the Flow interface and register a Factory per
// domain; the Manager owns live flow sessions keyed by flow ID.
//
// Unique IDs guard against pairing the same account or device twice: a
// flow calls Context.SetUniqueID early, and the engine aborts with
// ReasonAlreadyConfigured if an entry with that unique ID already exists
// for the domain.
package flow
