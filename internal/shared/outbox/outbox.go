package outbox

// Outbox rows are persisted inside the same DB transaction as state changes.
// Worker relays read pending rows and publish to the message bus. Adapters
// share the status vocabulary so queries against either store agree.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusFailed    = "failed"
)
