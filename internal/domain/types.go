package domain

// Document is the cleaned text of one uploaded contract, split by page.
type Document struct {
	Name      string
	FullText  string
	PageCount int
	Pages     []string
}

// Chunk is a bounded span of a document tagged with its best-effort source page.
type Chunk struct {
	ID           string
	DocumentName string
	Page         int
	Content      string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Importance ranks how much attention a clause deserves.
type Importance string

const (
	ImportanceHigh   Importance = "High"
	ImportanceMedium Importance = "Medium"
	ImportanceLow    Importance = "Low"
)

// Rank orders importances High < Medium < Low; unknown values sort last.
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 0
	case ImportanceMedium:
		return 1
	case ImportanceLow:
		return 2
	default:
		return 3
	}
}

// ClauseResult is one categorized contract provision.
type ClauseResult struct {
	ClauseType  string
	Explanation string
	Snippet     string
	Page        int
	Importance  Importance
}

// RedFlagResult is a clause judged risky, with a confidence in [0,100].
type RedFlagResult struct {
	RiskType   string
	Reason     string
	Snippet    string
	Page       int
	Confidence float64
}

// Citation points an answer back to the page and text it came from.
type Citation struct {
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

// QAResult is the answer to a single question.
type QAResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	// Confidence is nil when the answering path does not estimate one.
	Confidence *float64 `json:"confidence,omitempty"`
}
