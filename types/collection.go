//nolint:revive // types is a common Go package naming convention
package types

// CollectionStatus is the per-FRU collection state.
//
// Lifecycle: NotStarted -> InProgress -> {Completed | Failed}.
// A terminal state is left only through a new explicit collection request.
type CollectionStatus string

// Collection states.
const (
	CollectionNotStarted CollectionStatus = "NotStarted"
	CollectionInProgress CollectionStatus = "InProgress"
	CollectionCompleted  CollectionStatus = "Completed"
	CollectionFailed     CollectionStatus = "Failed"
)

// IsTerminal returns true for Completed and Failed.
func (s CollectionStatus) IsTerminal() bool {
	return s == CollectionCompleted || s == CollectionFailed
}
