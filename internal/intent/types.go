package intent

import "github.com/google/uuid"

// Method tags how a candidate match was produced.
type Method string

const (
	MethodExact   Method = "exact"
	MethodSynonym Method = "synonym"
	MethodTypo    Method = "typo"
	MethodPhrase  Method = "phrase"
	MethodFuzzy   Method = "fuzzy"
)

// Fixed confidences for the set-membership strategies.
const (
	ExactConfidence   = 1.0
	SynonymConfidence = 0.95
	TypoConfidence    = 0.90

	PhraseThreshold = 0.80
	FuzzyThreshold  = 0.75

	// fuzzyMinTokenLen skips short tokens that would match almost anything.
	fuzzyMinTokenLen = 3
)

// Definition is one configured intent from the catalog.
type Definition struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"intent_name"`
	DisplayName   string    `json:"display_name"`
	Keywords      []string  `json:"keywords"`
	Synonyms      []string  `json:"synonyms"`
	Typos         []string  `json:"typos"`
	Phrases       []string  `json:"phrases"`
	MinConfidence float64   `json:"min_confidence"`
	Priority      int       `json:"priority"`
	ResponseType  string    `json:"response_type"`
	IsCheckpoint  bool      `json:"is_checkpoint"`
	IsActive      bool      `json:"is_active"`
}

// Evidence is one (token, catalog term) pair that supported a match.
type Evidence struct {
	Token      string  `json:"matched_word"`
	Term       string  `json:"keyword"`
	Similarity float64 `json:"similarity"`
	Method     string  `json:"method"`
}

// Match is the candidate produced for a single intent.
type Match struct {
	IntentName   string     `json:"intent_name"`
	Confidence   float64    `json:"confidence"`
	MatchedTerms []string   `json:"matched_keywords"`
	Method       Method     `json:"detection_method"`
	Evidence     []Evidence `json:"fuzzy_matches"`
}

// Result is the outcome of running detection over one message.
type Result struct {
	Detected bool    `json:"detected"`
	Intent   *Match  `json:"intent,omitempty"`
	Message  string  `json:"normalized_message"`
	Matches  []Match `json:"all_matches"`
}
