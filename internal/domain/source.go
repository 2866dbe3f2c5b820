package domain

import "fmt"

// SourceID identifies where a news item came from.
type SourceID int

// Known sources. Values match the newssource table.
const (
	SourceGeekhack  SourceID = 1
	SourceZFrontier SourceID = 2
	SourceOther     SourceID = 3
)

// IsValid reports whether s is one of the known sources.
func (s SourceID) IsValid() bool {
	switch s {
	case SourceGeekhack, SourceZFrontier, SourceOther:
		return true
	}
	return false
}

// Tag returns the short label used in captions and stored names.
func (s SourceID) Tag() string {
	switch s {
	case SourceGeekhack:
		return "GH"
	case SourceZFrontier:
		return "ZF"
	default:
		return "Other"
	}
}

// Prefix prepends the source tag to name, e.g. "[GH] Foo".
func (s SourceID) Prefix(name string) string {
	return fmt.Sprintf("[%s] %s", s.Tag(), name)
}

func (s SourceID) String() string {
	return s.Tag()
}
