// Package sources defines the contract shared by content source adapters.
package sources

import (
	"context"
	"iter"

	"github.com/thocc/newsrelay/internal/domain"
)

// Source produces candidate items from one external source.
//
// Produce fetches and parses the source document; a failure there aborts the
// cycle and is returned. The returned sequence yields items in document
// order, skipping entries that cannot be extracted. It is finite, and Produce
// may be called again for the next cycle.
type Source interface {
	Name() string
	SourceID() domain.SourceID
	Produce(ctx context.Context) (iter.Seq[domain.CandidateItem], error)
}
