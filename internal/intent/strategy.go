package intent

import "strings"

// Input is the per-message view every strategy reads from.
type Input struct {
	// Normalized is the output of Normalize, before reconstruction.
	Normalized string
	// Tokens come from the reconstructed message.
	Tokens []string
}

// Strategy tries to match one intent against a message.
type Strategy interface {
	Method() Method
	Match(in Input, e *entry) (Match, bool)
}

// DefaultCascade is the fixed order strategies are tried in for each intent.
// The first strategy that matches wins for that intent.
func DefaultCascade() []Strategy {
	return []Strategy{
		setStrategy{method: MethodExact, confidence: ExactConfidence, terms: func(e *entry) []string { return e.keywords }},
		setStrategy{method: MethodSynonym, confidence: SynonymConfidence, terms: func(e *entry) []string { return e.synonyms }},
		setStrategy{method: MethodTypo, confidence: TypoConfidence, terms: func(e *entry) []string { return e.typos }},
		phraseStrategy{},
		fuzzyStrategy{},
	}
}

type phrase struct {
	raw        string
	normalized string
}

// entry is a Definition with its terms prepared for matching.
type entry struct {
	def      Definition
	keywords []string
	synonyms []string
	typos    []string
	phrases  []phrase
}

func compile(def Definition) *entry {
	e := &entry{
		def:      def,
		keywords: lowerAll(def.Keywords),
		synonyms: lowerAll(def.Synonyms),
		typos:    lowerAll(def.Typos),
	}
	for _, p := range def.Phrases {
		e.phrases = append(e.phrases, phrase{raw: p, normalized: Normalize(p)})
	}
	return e
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// setStrategy matches when any token equals one of the intent's terms.
type setStrategy struct {
	method     Method
	confidence float64
	terms      func(e *entry) []string
}

func (s setStrategy) Method() Method { return s.method }

func (s setStrategy) Match(in Input, e *entry) (Match, bool) {
	terms := s.terms(e)
	if len(terms) == 0 {
		return Match{}, false
	}

	var matched []string
	var evidence []Evidence
	for _, token := range in.Tokens {
		for _, term := range terms {
			if term == token {
				matched = append(matched, token)
				evidence = append(evidence, Evidence{Token: token, Term: term, Similarity: s.confidence, Method: string(s.method)})
				break
			}
		}
	}
	if len(matched) == 0 {
		return Match{}, false
	}
	return Match{
		IntentName:   e.def.Name,
		Confidence:   s.confidence,
		MatchedTerms: matched,
		Method:       s.method,
		Evidence:     evidence,
	}, true
}

// phraseStrategy compares the whole message to each trigger phrase.
// It reconstructs from the normalized text on its own rather than reusing the
// token path's reconstruction.
type phraseStrategy struct{}

func (phraseStrategy) Method() Method { return MethodPhrase }

func (phraseStrategy) Match(in Input, e *entry) (Match, bool) {
	if len(e.phrases) == 0 {
		return Match{}, false
	}
	message := ReconstructBrokenWords(in.Normalized)

	var evidence []Evidence
	best := -1
	for _, p := range e.phrases {
		sim := Similarity(message, p.normalized)
		if sim < PhraseThreshold {
			continue
		}
		evidence = append(evidence, Evidence{Token: message, Term: p.raw, Similarity: sim, Method: string(MethodPhrase)})
		if best < 0 || sim > evidence[best].Similarity {
			best = len(evidence) - 1
		}
	}
	if best < 0 {
		return Match{}, false
	}
	return Match{
		IntentName:   e.def.Name,
		Confidence:   evidence[best].Similarity,
		MatchedTerms: []string{evidence[best].Term},
		Method:       MethodPhrase,
		Evidence:     evidence,
	}, true
}

// fuzzyStrategy averages every token/term pair above FuzzyThreshold.
type fuzzyStrategy struct{}

func (fuzzyStrategy) Method() Method { return MethodFuzzy }

func (fuzzyStrategy) Match(in Input, e *entry) (Match, bool) {
	terms := make([]string, 0, len(e.keywords)+len(e.synonyms))
	terms = append(terms, e.keywords...)
	terms = append(terms, e.synonyms...)
	rawTerms := make([]string, 0, len(terms))
	rawTerms = append(rawTerms, e.def.Keywords...)
	rawTerms = append(rawTerms, e.def.Synonyms...)

	var evidence []Evidence
	var matched []string
	var sum float64
	for _, token := range in.Tokens {
		if len([]rune(token)) < fuzzyMinTokenLen {
			continue
		}
		for i, term := range terms {
			sim := Similarity(token, term)
			if sim < FuzzyThreshold {
				continue
			}
			sum += sim
			matched = append(matched, token)
			evidence = append(evidence, Evidence{Token: token, Term: rawTerms[i], Similarity: sim, Method: "levenshtein"})
		}
	}
	if len(evidence) == 0 {
		return Match{}, false
	}

	confidence := sum / float64(len(evidence))
	if confidence < e.def.MinConfidence {
		return Match{}, false
	}
	return Match{
		IntentName:   e.def.Name,
		Confidence:   confidence,
		MatchedTerms: matched,
		Method:       MethodFuzzy,
		Evidence:     evidence,
	}, true
}
