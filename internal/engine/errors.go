package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned by Resolve when the query is blank after trimming.
var ErrEmptyQuery = errors.New("engine: empty query")

// NotFoundError is returned by Resolve when no record's drug_name matches.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("engine: no drug found matching %q", e.Query)
}
