package recon

import "fmt"

// DuplicateKeyError reports a natural key appearing twice in the local
// rows. Local duplicates are a data-integrity bug; silently keeping
// either row would misreport sync status.
type DuplicateKeyError struct {
	Resource string // "number" or "messaging_service"
	Key      string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("recon: duplicate local %s %q", e.Resource, e.Key)
}

// AmbiguousDataError reports upstream data that has no single correct
// interpretation, such as a messaging service with more than one A2P
// campaign or a number assigned to more than one service. Guessing
// would misreport sync status, so classification fails instead.
type AmbiguousDataError struct {
	Resource string // "messaging_service" or "number"
	Key      string
	Detail   string
}

func (e *AmbiguousDataError) Error() string {
	return fmt.Sprintf("recon: ambiguous data for %s %q: %s", e.Resource, e.Key, e.Detail)
}
