package features

import "fmt"

// EncodingError reports a dataset that cannot be turned into features.
type EncodingError struct {
	Column string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("encoding column %q: %s", e.Column, e.Reason)
	}
	return "encoding: " + e.Reason
}
