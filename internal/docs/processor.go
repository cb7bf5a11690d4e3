package docs

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/errors"
)

var (
	headingPattern     = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	anyHeadingPattern  = regexp.MustCompile(`(?m)^#{1,3}\s+`)
	linkPattern        = regexp.MustCompile(`\[.+\]\(.+\)`)
	listPattern        = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n.*\n---`)
	hashtagPattern     = regexp.MustCompile(`#(\w+)`)
	keywordsPattern    = regexp.MustCompile(`(?mi)^keywords?:\s*(.+)$`)
	moduleIDPattern    = regexp.MustCompile(`M(\d{3})`)
	requirementPattern = regexp.MustCompile(`REQ-\d+`)
	testRefPattern     = regexp.MustCompile(`TEST-\d+`)
	apiRefPattern      = regexp.MustCompile(`/api/[a-z0-9\-/]+`)
)

// techTerms are always-on tag candidates matched case-insensitively.
var techTerms = []string{"AI", "ML", "API", "database", "vector", "graph", "cache", "search"}

// typeRule maps a path substring (or pattern) to a document type.
// Rules are evaluated in declared order; the first match wins.
type typeRule struct {
	substrings []string
	pattern    *regexp.Regexp
	docType    DocumentType
}

var typeRules = []typeRule{
	{substrings: []string{"requirement", "prd"}, docType: TypeRequirements},
	{substrings: []string{"architecture", "system-design"}, docType: TypeArchitecture},
	{substrings: []string{"api", "reference"}, docType: TypeAPI},
	{pattern: moduleIDPattern, docType: TypeModule},
	{substrings: []string{"test"}, docType: TypeTesting},
	{substrings: []string{"deploy", "installation"}, docType: TypeDeployment},
	{substrings: []string{"user", "guide"}, docType: TypeUserGuide},
	{substrings: []string{"contribut"}, docType: TypeContributing},
	{substrings: []string{"security"}, docType: TypeSecurity},
	{substrings: []string{"performance"}, docType: TypePerformance},
	{substrings: []string{"config"}, docType: TypeConfiguration},
}

// Processor turns raw file content into the canonical representation.
type Processor struct {
	quality  config.QualityConfig
	splitter *Splitter
	maxTags  int
}

// NewProcessor creates a processor with the given quality weights and
// chunking settings.
func NewProcessor(quality config.QualityConfig, chunking config.ChunkingConfig) *Processor {
	return &Processor{
		quality:  quality,
		splitter: NewSplitter(chunking.ChunkSize, chunking.ChunkOverlap),
		maxTags:  10,
	}
}

// Process derives the document, its chunks, and its relationships from
// raw content. Empty content is a permanent validation error.
func (p *Processor) Process(content, path string) (*Processed, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New(errors.ErrCodeContentEmpty,
			fmt.Sprintf("document %s has no content", path), nil)
	}

	docType := DetectType(path)
	moduleID := extractModuleID(path)

	doc := &Document{
		ID:           documentID(docType, path),
		Title:        extractTitle(content, path),
		Type:         docType,
		SourcePath:   path,
		Content:      content,
		ModuleID:     moduleID,
		Phase:        phaseForModule(moduleID),
		Tags:         p.extractTags(content),
		QualityScore: p.QualityScore(content),
		Checksum:     Checksum(content),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	chunks := p.chunk(doc)
	rels := extractRelationships(doc)

	return &Processed{Document: doc, Chunks: chunks, Relationships: rels}, nil
}

// DetectType classifies a document from its path. Rules are checked in
// declared order and the first match wins; unmatched paths default to
// user_guide.
func DetectType(path string) DocumentType {
	lower := strings.ToLower(path)
	for _, rule := range typeRules {
		if rule.pattern != nil {
			if rule.pattern.MatchString(path) {
				return rule.docType
			}
			continue
		}
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return rule.docType
			}
		}
	}
	return TypeUserGuide
}

// Checksum returns the SHA-256 hex digest of content.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// documentID builds a stable id from type, filename stem, and a short
// hash of the full path, so re-ingesting the same file hits the same id.
func documentID(docType DocumentType, path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pathHash := md5.Sum([]byte(path))
	return fmt.Sprintf("%s_%s_%s", docType, stem, hex.EncodeToString(pathHash[:])[:8])
}

// extractTitle takes the first H1 heading, falling back to the filename
// stem with underscores spaced out and words capitalized.
func extractTitle(content, path string) string {
	if m := headingPattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	words := strings.Fields(strings.ReplaceAll(stem, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// extractModuleID pulls a module identifier (M003) out of the path.
func extractModuleID(path string) string {
	if m := moduleIDPattern.FindString(path); m != "" {
		return m
	}
	return ""
}

// phaseForModule derives the project phase from the module number.
// Modules 1-7 are phase 1, 8-12 phase 2, the rest phase 3.
func phaseForModule(moduleID string) int {
	if moduleID == "" {
		return 0
	}
	num, err := strconv.Atoi(moduleID[1:])
	if err != nil {
		return 0
	}
	switch {
	case num <= 7:
		return 1
	case num <= 12:
		return 2
	default:
		return 3
	}
}

// extractTags collects hashtags, a keywords: line, and known technical
// terms. Tags are unique in first-seen order, capped at maxTags.
func (p *Processor) extractTags(content string) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}

	if m := keywordsPattern.FindStringSubmatch(content); m != nil {
		for _, kw := range strings.Split(m[1], ",") {
			add(kw)
		}
	}

	lower := strings.ToLower(content)
	for _, term := range techTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			add(term)
		}
	}

	if len(tags) > p.maxTags {
		tags = tags[:p.maxTags]
	}
	return tags
}

// QualityScore computes the additive structure heuristic, capped at 100.
func (p *Processor) QualityScore(content string) float64 {
	score := float64(p.quality.Base)

	if anyHeadingPattern.MatchString(content) {
		score += float64(p.quality.Headings)
	}
	if strings.Contains(content, "```") {
		score += float64(p.quality.CodeBlocks)
	}
	if linkPattern.MatchString(content) {
		score += float64(p.quality.Links)
	}
	if strings.Count(content, "|") > 10 {
		score += float64(p.quality.Tables)
	}
	if listPattern.MatchString(content) {
		score += float64(p.quality.Lists)
	}

	wordCount := len(strings.Fields(content))
	if wordCount > p.quality.LongWordCount {
		score += float64(p.quality.LongDocument)
	} else if wordCount > p.quality.ShortWordCount {
		score += float64(p.quality.ShortDocument)
	}

	if frontmatterPattern.MatchString(content) {
		score += float64(p.quality.Frontmatter)
	}

	if score > 100 {
		score = 100
	}
	return score
}

// chunk splits the document content into ordered chunks with stable ids.
func (p *Processor) chunk(doc *Document) []*Chunk {
	spans := p.splitter.Split(doc.Content)
	chunks := make([]*Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, &Chunk{
			ID:          fmt.Sprintf("%s_chunk_%04d", doc.ID, i),
			DocumentID:  doc.ID,
			Content:     span.Text,
			Index:       i,
			StartChar:   span.Start,
			EndChar:     span.End,
			TotalChunks: len(spans),
		})
	}
	return chunks
}

// extractRelationships scans content for module, requirement, test, and
// API references. Targets are unique per relationship type; a module
// reference to the document's own module is skipped. Documents with a
// module id additionally get a BELONGS_TO edge to that module.
func extractRelationships(doc *Document) []Relationship {
	var rels []Relationship

	addUnique := func(matches []string, targetType string, relType RelationType, strength float64, skip string) {
		seen := make(map[string]bool)
		for _, target := range matches {
			if target == skip || seen[target] {
				continue
			}
			seen[target] = true
			rels = append(rels, Relationship{
				SourceID:   doc.ID,
				SourceType: "document",
				TargetID:   target,
				TargetType: targetType,
				Type:       relType,
				Strength:   strength,
			})
		}
	}

	addUnique(moduleIDPattern.FindAllString(doc.Content, -1), "module", RelReferences, 0.8, doc.ModuleID)
	addUnique(requirementPattern.FindAllString(doc.Content, -1), "requirement", RelImplements, 0.9, "")
	addUnique(testRefPattern.FindAllString(doc.Content, -1), "test", RelTests, 0.85, "")
	addUnique(apiRefPattern.FindAllString(doc.Content, -1), "api_endpoint", RelDefines, 0.75, "")

	if doc.ModuleID != "" {
		rels = append(rels, Relationship{
			SourceID:   doc.ID,
			SourceType: "document",
			TargetID:   doc.ModuleID,
			TargetType: "module",
			Type:       RelBelongsTo,
			Strength:   1.0,
		})
	}

	return rels
}
