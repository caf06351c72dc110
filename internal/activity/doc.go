// Package activity keeps a bounded in-memory log of dispatch attempts.
//
// Every dispatch appends a start entry before the command is issued and
// exactly one success or error entry after, so the log reflects each
// attempt exactly once. Entries are not persisted; the log exists for
// the UI's recent-activity view and the live feed.
package activity
