package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidOrdering = errors.New("invalid ordering field")

// Ordering is a parsed "?ordering=" value; a leading '-' means descending.
type Ordering struct {
	Field      string
	Descending bool
}

func ParseOrdering(raw string, allowed ...string) (Ordering, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ordering{}, nil
	}
	o := Ordering{Field: raw}
	if strings.HasPrefix(raw, "-") {
		o.Field = raw[1:]
		o.Descending = true
	}
	for _, f := range allowed {
		if f == o.Field {
			return o, nil
		}
	}
	return Ordering{}, fmt.Errorf("%w: %q", ErrInvalidOrdering, o.Field)
}

func (o Ordering) IsZero() bool { return o.Field == "" }
