// Package apperr defines the tagged error taxonomy the search core surfaces
// to callers: Validation, NotFound, Conflict, Resource, Corruption, and
// Internal. Every error that crosses a package boundary in this module is
// either one of these, or gets wrapped into one at the boundary — callers
// never see a raw codec or bbolt error.
package apperr
