package coordinator

import "github.com/google/uuid"

// newOperationID returns a fresh operationId for one Mutate call, per
// spec.md §4.7 step 1.
func newOperationID() string {
	return uuid.NewString()
}
