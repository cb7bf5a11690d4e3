package query

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/devdocai/docfed/internal/store"
)

// intentWeights re-ranks normalized scores per intent. Weights above 1
// favor the structurally authoritative source for that intent; sources
// missing from the table keep weight 1.0.
var intentWeights = map[Intent]map[string]float64{
	IntentSemanticSearch:       {store.BackendVector: 1.2, store.BackendRelational: 1.0, store.BackendFullText: 0.8},
	IntentRequirementTracing:   {store.BackendGraph: 1.3, store.BackendRelational: 0.9},
	IntentModuleDependencies:   {store.BackendGraph: 1.5},
	IntentTestCoverage:         {store.BackendGraph: 1.2, store.BackendRelational: 1.0},
	IntentImplementationGuides: {store.BackendFullText: 1.2, store.BackendVector: 1.0},
	IntentConsistencyChecking:  {store.BackendGraph: 1.1, store.BackendRelational: 1.0, store.BackendFullText: 0.9},
	IntentArchitectureQueries:  {store.BackendGraph: 1.3, store.BackendFullText: 1.0},
}

// fingerprintPrefixLen bounds how much content feeds the dedup hash.
const fingerprintPrefixLen = 500

// Fuse merges per-backend result sets into one ranked list:
// min-max normalization within each source, content-fingerprint
// deduplication with source merging, intent-weighted re-ranking, and
// truncation to limit. Deterministic for identical inputs.
func Fuse(bySource map[string][]*store.Result, intent Intent, limit int) []*FusedResult {
	if limit <= 0 {
		limit = 10
	}

	// Iterate sources in a fixed order so dedup keeps the same winner
	// regardless of map iteration.
	sources := make([]string, 0, len(bySource))
	for name := range bySource {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	// Dedup works on normalized scores; the intent weight of each
	// result's primary source is applied after merging.
	seen := make(map[string]*FusedResult)
	var fused []*FusedResult
	primarySource := make(map[*FusedResult]string)

	for _, source := range sources {
		results := bySource[source]
		normalized := normalizeScores(results)

		for i, r := range results {
			fp := contentFingerprint(r.Content)

			if existing, ok := seen[fp]; ok {
				// Duplicate content: merge sources, keep the best
				// normalized score.
				if normalized[i] > existing.Score {
					existing.Score = normalized[i]
				}
				if !containsString(existing.Sources, source) {
					existing.Sources = append(existing.Sources, source)
				}
				continue
			}

			fr := &FusedResult{
				DocumentID: r.DocumentID,
				ChunkID:    r.ChunkID,
				Content:    r.Content,
				Score:      normalized[i],
				Sources:    []string{source},
				Metadata:   r.Metadata,
			}
			seen[fp] = fr
			primarySource[fr] = source
			fused = append(fused, fr)
		}
	}

	weights := intentWeights[intent]
	for _, fr := range fused {
		if w, ok := weights[primarySource[fr]]; ok {
			fr.Score *= w
		}
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// normalizeScores min-max normalizes one source's scores to [0, 1].
// A degenerate range (single result, or all scores equal) maps to 1.0.
func normalizeScores(results []*store.Result) []float64 {
	normalized := make([]float64, len(results))
	if len(results) == 0 {
		return normalized
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	if maxScore == minScore {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}

	span := maxScore - minScore
	for i, r := range results {
		normalized[i] = (r.Score - minScore) / span
	}
	return normalized
}

// Confidence is the mean score of the top results (at most five).
func Confidence(results []*FusedResult) float64 {
	if len(results) == 0 {
		return 0
	}
	n := len(results)
	if n > 5 {
		n = 5
	}
	var sum float64
	for _, r := range results[:n] {
		sum += r.Score
	}
	return sum / float64(n)
}

// contentFingerprint hashes the leading content prefix for dedup.
func contentFingerprint(content string) string {
	if len(content) > fingerprintPrefixLen {
		content = content[:fingerprintPrefixLen]
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
