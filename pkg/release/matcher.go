package release

import "github.com/hbollon/go-edlib"

// MatchConfidence represents the confidence level of a title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // score < 0.70
	ConfidenceLow                           // score >= 0.70
	ConfidenceMedium                        // score >= 0.85
	ConfidenceHigh                          // score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult is the result of a fuzzy title match.
type MatchResult struct {
	Index      int     // index into the candidate slice, -1 when no candidates
	Title      string  // the matched candidate title
	Score      float64 // Jaro-Winkler similarity score (0.0-1.0)
	Confidence MatchConfidence
}

// MatchTitle finds the best match for a parsed series title against candidate
// titles. Jaro-Winkler favors prefix matches, which suits series names where
// releases commonly append year or country tags.
func MatchTitle(parsed string, candidates []string) MatchResult {
	best := MatchResult{Index: -1, Confidence: ConfidenceNone}
	if len(candidates) == 0 {
		return best
	}

	normalizedParsed := CleanTitle(parsed)

	for i, candidate := range candidates {
		score := float64(edlib.JaroWinklerSimilarity(normalizedParsed, CleanTitle(candidate)))
		if score > best.Score {
			best.Index = i
			best.Title = candidate
			best.Score = score
		}
	}

	switch {
	case best.Score >= 0.95:
		best.Confidence = ConfidenceHigh
	case best.Score >= 0.85:
		best.Confidence = ConfidenceMedium
	case best.Score >= 0.70:
		best.Confidence = ConfidenceLow
	default:
		best.Confidence = ConfidenceNone
	}

	return best
}
