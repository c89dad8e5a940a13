package domain

import "fmt"

// Status is where an issue is in its lifecycle.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// InitialStatus is assigned by Create; clients cannot choose it.
const InitialStatus = StatusOpen

var statusLabels = map[Status]string{
	StatusOpen:       "Open",
	StatusInProgress: "In Progress",
	StatusClosed:     "Closed",
}

// AllStatuses lists the statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusClosed}
}

// IsValid reports whether s belongs to the enumeration.
func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Display returns the label used in terminal output. Unknown values are
// returned verbatim.
func (s Status) Display() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseStatus converts a string into a Status, rejecting values outside the enumeration.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}
