package router

import "strings"

// Classifier scores lowercased text for one regime. The keyword-frequency
// baseline below satisfies spec §4.12's minimum contract; richer embedding
// classifiers may be substituted behind this same interface.
type Classifier interface {
	Score(lowerText string) float64
}

// KeywordClassifier scores by the fraction of its wordlist found in the
// text (spec §4.12 observe).
type KeywordClassifier struct {
	Keywords []string
}

func (k KeywordClassifier) Score(lowerText string) float64 {
	if len(k.Keywords) == 0 {
		return 0
	}
	matches := 0
	for _, kw := range k.Keywords {
		if strings.Contains(lowerText, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(k.Keywords))
}

// DefaultClassifiers mirrors the reference observation model's wordlists.
func DefaultClassifiers() map[Regime]Classifier {
	return map[Regime]Classifier{
		Medical: KeywordClassifier{Keywords: []string{"diagnosis", "treatment", "symptoms", "patient", "medication"}},
		Legal:   KeywordClassifier{Keywords: []string{"contract", "liability", "compliance", "regulation", "jurisdiction"}},
		Code:    KeywordClassifier{Keywords: []string{"function", "variable", "compile", "debug", "algorithm"}},
		Financial: KeywordClassifier{Keywords: []string{"trading", "liquidity", "yield", "defi", "amm"}},
		Creative: KeywordClassifier{Keywords: []string{"poem", "story", "paint", "compose", "novel"}},
	}
}
