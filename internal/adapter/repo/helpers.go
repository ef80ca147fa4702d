package repo

import "github.com/google/uuid"

// isUUID guards postgres uuid casts so malformed ids read as not found
// instead of a query error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
