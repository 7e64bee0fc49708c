package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/port"
)

// Searcher answers free-text queries against one or both indices. A
// failing embedder or index degrades to an empty result set with a
// logged reason; only a bad mode is an error the caller sees.
type Searcher struct {
	store          port.MetadataStore
	textIndex      port.VectorIndex
	visualIndex    port.VectorIndex
	textEmbedder   port.TextEmbedder
	visualEmbedder port.VisualEmbedder
	logger         *slog.Logger
	visualMinScore float64
}

func NewSearcher(
	store port.MetadataStore,
	textIndex, visualIndex port.VectorIndex,
	textEmbedder port.TextEmbedder,
	visualEmbedder port.VisualEmbedder,
	logger *slog.Logger,
	visualMinScore float64,
) *Searcher {
	return &Searcher{
		store:          store,
		textIndex:      textIndex,
		visualIndex:    visualIndex,
		textEmbedder:   textEmbedder,
		visualEmbedder: visualEmbedder,
		logger:         logger,
		visualMinScore: visualMinScore,
	}
}

// Search runs a query in the given mode and returns at most topK results
// ordered by descending score. In combined mode the cap applies to the
// merged list, not per modality.
func (s *Searcher) Search(ctx context.Context, query string, topK int, mode domain.SearchMode) ([]domain.SearchResult, error) {
	switch mode {
	case domain.ModeText, domain.ModeVisual, domain.ModeBoth:
	default:
		return nil, fmt.Errorf("unknown search mode %q (want text, visual, or both)", mode)
	}
	if topK <= 0 {
		topK = 5
	}

	var results []domain.SearchResult
	if mode == domain.ModeText || mode == domain.ModeBoth {
		results = append(results, s.searchText(ctx, query, topK)...)
	}
	if mode == domain.ModeVisual || mode == domain.ModeBoth {
		results = append(results, s.searchVisual(ctx, query, topK)...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// searchText maps L2 distances to scores via 1/(1+d): monotonic, bounded
// to (0,1], exact match scoring 1.
func (s *Searcher) searchText(ctx context.Context, query string, topK int) []domain.SearchResult {
	vectors, err := s.textEmbedder.EmbedTexts(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		s.logger.Warn("text search unavailable", "error", err)
		return nil
	}

	hits, err := s.textIndex.Search(vectors[0], topK)
	if err != nil {
		s.logger.Warn("text search unavailable", "error", err)
		return nil
	}

	var results []domain.SearchResult
	for _, hit := range hits {
		if hit.ID < 0 {
			continue
		}

		resolved, err := s.store.ResolveTextVectorID(ctx, hit.ID)
		if err != nil {
			s.logger.Warn("failed to resolve text vector", "vector_id", hit.ID, "error", err)
			continue
		}
		if resolved.Kind == domain.ResolvedNone {
			// A vector the metadata store has never heard of: a write
			// interrupted between index add and row link.
			s.logger.Warn("vector has no metadata row", "vector_id", hit.ID)
			continue
		}

		results = append(results, domain.SearchResult{
			VectorID:  hit.ID,
			Score:     1.0 / (1.0 + float64(hit.Score)),
			Kind:      domain.ResultText,
			Text:      resolved.Text,
			Source:    resolved.Source,
			Metadata:  resolved.Metadata,
			CreatedAt: resolved.CreatedAt,
		})
	}
	return results
}

// searchVisual queries image space with the cross-modal encoder. Hits
// below the similarity floor are dropped, and one image may have
// contributed several near-identical vectors over time, so results are
// deduplicated by path keeping the best score.
func (s *Searcher) searchVisual(ctx context.Context, query string, topK int) []domain.SearchResult {
	vector, err := s.visualEmbedder.EmbedTextForImageSearch(ctx, query)
	if err != nil {
		s.logger.Warn("visual search unavailable", "error", err)
		return nil
	}

	hits, err := s.visualIndex.Search(vector, topK)
	if err != nil {
		s.logger.Warn("visual search unavailable", "error", err)
		return nil
	}

	best := make(map[string]domain.SearchResult)
	var order []string

	for _, hit := range hits {
		if hit.ID < 0 {
			continue
		}
		score := float64(hit.Score)
		if score < s.visualMinScore {
			continue
		}

		item, err := s.store.GetVisualItemByVectorID(ctx, hit.ID)
		if err != nil {
			s.logger.Warn("failed to resolve visual vector", "vector_id", hit.ID, "error", err)
			continue
		}

		pathKey := fmt.Sprintf("vector:%d", hit.ID)
		result := domain.SearchResult{
			VectorID: hit.ID,
			Score:    score,
			Kind:     domain.ResultVisual,
		}
		if item != nil {
			if item.Path != "" {
				pathKey = item.Path
			}
			result.Path = item.Path
			result.Text = item.OCRText
			result.Metadata = item.Metadata
			result.CreatedAt = item.CreatedAt
		}

		current, seen := best[pathKey]
		if !seen {
			order = append(order, pathKey)
		}
		if !seen || score > current.Score {
			best[pathKey] = result
		}
	}

	results := make([]domain.SearchResult, 0, len(best))
	for _, key := range order {
		results = append(results, best[key])
	}
	return results
}
