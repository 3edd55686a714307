package order

import (
	"fmt"
	"sort"
)

// PartialCommitError reports an order commit that failed after some
// stock decrements had been applied and the compensating restores also
// failed. Unrestored maps product id to the quantity still missing from
// stock; those rows need manual reconciliation.
type PartialCommitError struct {
	StoreID    string
	Unrestored map[string]int
	Err        error
}

func (e *PartialCommitError) Error() string {
	ids := make([]string, 0, len(e.Unrestored))
	for id := range e.Unrestored {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("order: partial commit for store %s left stock unrestored for products %v: %v",
		e.StoreID, ids, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }
