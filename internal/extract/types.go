package extract

import "github.com/dkritz/sql-server-extractor/internal/catalog"

// Source records where a definition's text came from.
type Source int

const (
	// SourceNative is a definition retrieved verbatim from the server's
	// module or object definition metadata.
	SourceNative Source = iota
	// SourceSynthesized is a structural reconstruction built from column
	// metadata when no native definition exists.
	SourceSynthesized
	// SourceUnavailable carries a placeholder comment body; absence of a
	// definition is a normal, typed outcome, never an error.
	SourceUnavailable
)

func (s Source) String() string {
	switch s {
	case SourceNative:
		return "native"
	case SourceSynthesized:
		return "synthesized"
	case SourceUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// DefinitionResult is the outcome of resolving one schema object. It is
// produced by the Resolver and consumed exactly once by the Writer.
type DefinitionResult struct {
	Object catalog.ObjectRef
	Text   string
	Source Source
}
