package domain

// Source is a news outlet rated for editorial alignment by moderation.
type Source struct {
	ID                  string
	Name                string
	Country             Country
	AlignmentScore      int
	AlignmentConfidence float64
	AlignmentLabel      string
	AlignmentNotes      string
	Active              bool
}

// AlignmentBucket groups alignment scores for the balanced feed.
type AlignmentBucket string

const (
	BucketProGov  AlignmentBucket = "proGov"
	BucketMixed   AlignmentBucket = "mixed"
	BucketAntiGov AlignmentBucket = "antiGov"
)

const (
	MinAlignment = -5
	MaxAlignment = 5

	// LabelUnrated is used when an article has no rated primary source.
	LabelUnrated = "unrated"
)

// ClampAlignment bounds a stored score to [MinAlignment, MaxAlignment].
func ClampAlignment(score int) int {
	return max(MinAlignment, min(MaxAlignment, score))
}

// BucketFor maps an alignment score to its bucket.
func BucketFor(score int) AlignmentBucket {
	switch {
	case score >= 2:
		return BucketProGov
	case score <= -2:
		return BucketAntiGov
	default:
		return BucketMixed
	}
}

// Label returns the moderator supplied label, or the bucket name when none is set.
func (s Source) Label() string {
	if s.AlignmentLabel != "" {
		return s.AlignmentLabel
	}
	return string(BucketFor(s.AlignmentScore))
}

// Alignment is the live alignment view attached to results.
type Alignment struct {
	Score      int
	Confidence float64
	Label      string
}

// AlignmentOf derives the alignment view of a source; found=false yields the unrated view.
func AlignmentOf(src Source, found bool) Alignment {
	if !found {
		return Alignment{Label: LabelUnrated}
	}
	return Alignment{
		Score:      src.AlignmentScore,
		Confidence: src.AlignmentConfidence,
		Label:      src.Label(),
	}
}
