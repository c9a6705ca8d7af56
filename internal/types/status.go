package types

import "fmt"

// QualifiedStatus is the lifecycle state of a formula record. The numeric
// values are part of the wire contract and must not be reordered.
type QualifiedStatus int

const (
	StatusPending     QualifiedStatus = 0
	StatusQualified   QualifiedStatus = 1
	StatusUnqualified QualifiedStatus = 2
	StatusProduction  QualifiedStatus = 3
)

func (s QualifiedStatus) Valid() bool {
	switch s {
	case StatusPending, StatusQualified, StatusUnqualified, StatusProduction:
		return true
	}
	return false
}

func (s QualifiedStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusQualified:
		return "qualified"
	case StatusUnqualified:
		return "unqualified"
	case StatusProduction:
		return "production"
	}
	return fmt.Sprintf("QualifiedStatus(%d)", int(s))
}

// Display returns the label shown to users. Exhaustive over the closed set;
// unknown values fall back to the numeric form rather than panicking.
func (s QualifiedStatus) Display() string {
	switch s {
	case StatusPending:
		return "Pending review"
	case StatusQualified:
		return "Qualified"
	case StatusUnqualified:
		return "Unqualified"
	case StatusProduction:
		return "In production"
	}
	return s.String()
}

// Exclusive reports whether at most one formula per design task may hold s.
func (s QualifiedStatus) Exclusive() bool {
	return s == StatusQualified || s == StatusProduction
}
