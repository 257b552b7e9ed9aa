// Package entry manages config entries: the persisted result of a
// completed pairing flow, and the runtime lifecycle of the integration
// loaded from it.
//
// An entry holds the domain, a display title, a unique ID (one entry per
// unique ID per domain) and an opaque data map of credentials the
// integration stored at pairing time. Entries persist in SQLite through
// Repository; the Manager drives setup, unload, reload and delete.
//
// Lifecycle states: a freshly created or restarted entry is not_loaded;
// Setup moves it to loaded, or to setup_retry when the integration
// reported a transient failure (ErrSetupRetry), or to setup_error for
// anything else. Entries in setup_retry are retried in the background on
// a fixed interval until setup succeeds or the entry is removed.
package entry
