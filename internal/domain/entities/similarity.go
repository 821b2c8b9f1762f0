package entities

// SimilarityMethod names the metric that flagged a name resemblance
type SimilarityMethod string

// Similarity methods in evaluation order
const (
	MethodEditDistance SimilarityMethod = "EDIT_DISTANCE"
	MethodNgramJaccard SimilarityMethod = "NGRAM_JACCARD"
	MethodPhonetic     SimilarityMethod = "PHONETIC"
	MethodHomoglyph    SimilarityMethod = "HOMOGLYPH"
)

// SimilarityMatch is one resemblance between a candidate and a popular package
type SimilarityMatch struct {
	TargetName string           `json:"targetName"`
	Method     SimilarityMethod `json:"method"`
	Score      float64          `json:"distanceOrScore"`
	RiskTier   Severity         `json:"riskTier"`
	Message    string           `json:"message"`
}
