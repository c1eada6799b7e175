package domain

import "time"

// ExtractedEntities are the named entities found in one article's text.
type ExtractedEntities struct {
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
	Events        []string `json:"events"`
}

// All flattens the four categories in a stable order.
func (e ExtractedEntities) All() []string {
	out := make([]string, 0, len(e.Persons)+len(e.Organizations)+len(e.Locations)+len(e.Events))
	out = append(out, e.Persons...)
	out = append(out, e.Organizations...)
	out = append(out, e.Locations...)
	out = append(out, e.Events...)
	return out
}

// IsEmpty reports whether no entity was extracted.
func (e ExtractedEntities) IsEmpty() bool {
	return len(e.Persons) == 0 && len(e.Organizations) == 0 && len(e.Locations) == 0 && len(e.Events) == 0
}

// PerspectiveMatch is a cached scoring fact for a (main, related) article pair.
// Rows are written once and never updated. Rank is the position the pair was
// returned at, so cached results replay in the same order.
type PerspectiveMatch struct {
	MainArticleID    string
	RelatedArticleID string
	SimilarityScore  float64
	MatchedEntities  []string
	Rank             int
	CreatedAt        time.Time
}

// MainArticleView describes the article perspectives were requested for.
type MainArticleView struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	SourceName     string `json:"sourceName"`
	AlignmentScore int    `json:"alignmentScore"`
	AlignmentLabel string `json:"alignmentLabel"`
}

// RelatedPerspective is one alternative framing of the main story.
type RelatedPerspective struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	PublishedAt     time.Time `json:"publishedAt"`
	SourceName      string    `json:"sourceName"`
	SourceLogoURL   string    `json:"sourceLogoUrl,omitempty"`
	SourceURL       string    `json:"sourceUrl,omitempty"`
	AlignmentScore  int       `json:"alignmentScore"`
	AlignmentLabel  string    `json:"alignmentLabel"`
	SimilarityScore float64   `json:"similarityScore"`
	MatchedEntities []string  `json:"matchedEntities"`
}

// PerspectivesResult is returned by the matcher.
type PerspectivesResult struct {
	MainArticle         MainArticleView      `json:"mainArticle"`
	RelatedPerspectives []RelatedPerspective `json:"relatedPerspectives"`
	FromCache           bool                 `json:"fromCache"`
}

// FeedArticle is an article annotated with its source alignment.
type FeedArticle struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	PublishedAt    time.Time `json:"publishedAt"`
	SourceName     string    `json:"sourceName"`
	SourceLogoURL  string    `json:"sourceLogoUrl,omitempty"`
	AlignmentScore int       `json:"alignmentScore"`
	AlignmentLabel string    `json:"alignmentLabel"`
}

// BalancedFeed partitions recent articles into alignment buckets.
type BalancedFeed struct {
	ProGov  []FeedArticle `json:"proGov"`
	Mixed   []FeedArticle `json:"mixed"`
	AntiGov []FeedArticle `json:"antiGov"`
}
