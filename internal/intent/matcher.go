package intent

import "sort"

// Matcher runs the strategy cascade over an immutable set of intents.
type Matcher struct {
	entries    []*entry
	byName     map[string]*entry
	strategies []Strategy
}

// NewMatcher keeps only active definitions. A nil cascade uses DefaultCascade.
func NewMatcher(defs []Definition, strategies []Strategy) *Matcher {
	if strategies == nil {
		strategies = DefaultCascade()
	}
	m := &Matcher{
		byName:     make(map[string]*entry, len(defs)),
		strategies: strategies,
	}
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		e := compile(def)
		m.entries = append(m.entries, e)
		m.byName[def.Name] = e
	}
	return m
}

// Detect classifies a raw message.
func (m *Matcher) Detect(message string) Result {
	normalized := Normalize(message)
	reconstructed := ReconstructBrokenWords(normalized)
	in := Input{Normalized: normalized, Tokens: Tokenize(reconstructed)}

	var candidates []Match
	for _, e := range m.entries {
		for _, s := range m.strategies {
			if match, ok := s.Match(in, e); ok {
				candidates = append(candidates, match)
				break
			}
		}
	}

	result := Rank(candidates, m.priority)
	result.Message = reconstructed
	return result
}

// Definition returns the active definition with the given name.
func (m *Matcher) Definition(name string) (Definition, bool) {
	e, ok := m.byName[name]
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// Definitions returns the active definitions in catalog order.
func (m *Matcher) Definitions() []Definition {
	out := make([]Definition, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.def)
	}
	return out
}

func (m *Matcher) priority(name string) int {
	if e, ok := m.byName[name]; ok {
		return e.def.Priority
	}
	return 0
}

// Rank orders candidates by confidence, then by intent priority, and picks the
// first one. Equal candidates keep their input order.
func Rank(candidates []Match, priority func(name string) int) Result {
	if len(candidates) == 0 {
		return Result{Detected: false, Matches: []Match{}}
	}
	sorted := make([]Match, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return priority(sorted[i].IntentName) > priority(sorted[j].IntentName)
	})
	winner := sorted[0]
	return Result{Detected: true, Intent: &winner, Matches: sorted}
}
