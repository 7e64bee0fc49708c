package usecase

import (
	"context"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/port"
)

// Maintainer exposes the offline views of stored state: statistics and
// the index-vs-metadata consistency check.
type Maintainer struct {
	store       port.MetadataStore
	textIndex   port.VectorIndex
	visualIndex port.VectorIndex
}

func NewMaintainer(store port.MetadataStore, textIndex, visualIndex port.VectorIndex) *Maintainer {
	return &Maintainer{
		store:       store,
		textIndex:   textIndex,
		visualIndex: visualIndex,
	}
}

// Stats combines table counts with live index counts.
func (m *Maintainer) Stats(ctx context.Context) (domain.Stats, error) {
	st, err := m.store.Stats(ctx)
	if err != nil {
		return st, err
	}
	st.TextVectors = int64(m.textIndex.Count())
	st.VisualVectors = int64(m.visualIndex.Count())
	return st, nil
}

// CheckReport cross-references index state against metadata rows.
type CheckReport struct {
	TextVectors      int64 // vectors in the text index
	LinkedTextRows   int64 // items + chunks holding a text vector id
	VisualVectors    int64
	LinkedVisualRows int64
	RepairCandidates int64 // items with no vector and no chunks
}

// Consistent reports whether every vector is accounted for by a row and
// no row waits for a repair.
func (r *CheckReport) Consistent() bool {
	return r.TextVectors == r.LinkedTextRows &&
		r.VisualVectors == r.LinkedVisualRows &&
		r.RepairCandidates == 0
}

// Check detects the gaps the write order can leave behind: vectors added
// to an index whose rows were never linked (crash between the two
// writes), rows linked to vectors lost with an unsaved index, and items
// whose embedding never happened.
func (m *Maintainer) Check(ctx context.Context) (*CheckReport, error) {
	linkedText, err := m.store.LinkedTextVectors(ctx)
	if err != nil {
		return nil, err
	}
	linkedVisual, err := m.store.LinkedVisualVectors(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := m.store.RepairCandidates(ctx, 0)
	if err != nil {
		return nil, err
	}

	return &CheckReport{
		TextVectors:      int64(m.textIndex.Count()),
		LinkedTextRows:   linkedText,
		VisualVectors:    int64(m.visualIndex.Count()),
		LinkedVisualRows: linkedVisual,
		RepairCandidates: int64(len(candidates)),
	}, nil
}
