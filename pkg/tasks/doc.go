// Package tasks defines the task entity, list filters, partial updates and
// aggregate counts.
//
// Status and priority are free-form strings. New tasks default to "pending"
// and "medium"; the well-known values are exported as constants because the
// stats endpoint counts them, but any non-empty value is stored as given.
//
// Partial updates distinguish an absent key from an explicit null:
//
//	patch, err := tasks.ParsePatch(body)
//	// patch.Keys       -> every key in the body, used for authorization
//	// patch.Title.Set  -> key present
//	// patch.Title.Valid -> present and not null
package tasks
