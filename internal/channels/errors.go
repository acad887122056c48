package channels

import "fmt"

// DuplicateIDError reports two account ids that differ only in case.
type DuplicateIDError struct {
	Channel  string
	ID       string
	Existing string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("channel %s: duplicate account id %q (conflicts with %q)", e.Channel, e.ID, e.Existing)
}

// SchemaError reports a channel config that does not match its spec.
type SchemaError struct {
	Channel string
	Path    string
	Reason  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("channel %s: %s: %s", e.Channel, e.Path, e.Reason)
}
