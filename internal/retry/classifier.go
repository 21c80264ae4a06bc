package retry

import "strings"

// Kind is the category a classifier assigns to an error description.
type Kind int

const (
	// KindUnknown means no rule matched.
	KindUnknown Kind = iota
	// KindTransient means the error is expected to clear up on its own.
	KindTransient
	// KindPermanent means repeating the same task cannot succeed.
	KindPermanent
)

// String returns a lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Classification is the verdict for one error description.
type Classification struct {
	Kind Kind
	// Keyword is the rule keyword that decided the verdict, empty for KindUnknown.
	Keyword string
}

// Retryable reports whether the classified error is worth retrying.
// Unknown errors are retryable.
func (c Classification) Retryable() bool {
	return c.Kind != KindPermanent
}

// Rule maps a lowercase keyword to a Kind.
type Rule struct {
	Keyword string
	Kind    Kind
}

// Classifier assigns a Classification to free-form error text.
type Classifier interface {
	Classify(errorText string) Classification
}

// DefaultRules returns the built-in keyword table.
func DefaultRules() []Rule {
	permanent := []string{
		"syntax error",
		"syntax",
		"parse error",
		"malformed",
		"does not exist",
		"doesn't exist",
		"missing table",
		"missing column",
		"no such table",
		"no such column",
		"unknown column",
		"unknown table",
		"table not found",
		"column not found",
		"undefined table",
		"undefined column",
		"permission denied",
		"access denied",
		"authentication failed",
		"unauthorized",
		"unauthenticated",
		"not authorized",
		"forbidden",
		"invalid credentials",
		"insufficient privilege",
		"authentication denied",
		"authorization denied",
		"denied",
	}
	transient := []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"connection closed",
		"broken pipe",
		"network",
		"temporarily unavailable",
		"temporary failure",
		"service unavailable",
		"unavailable",
		"try again",
		"rate limit",
		"too many requests",
		"throttl",
		"too many connections",
		"resource exhausted",
		"resources exhausted",
		"out of memory",
		"deadlock",
	}

	rules := make([]Rule, 0, len(permanent)+len(transient))
	for _, k := range permanent {
		rules = append(rules, Rule{Keyword: k, Kind: KindPermanent})
	}
	for _, k := range transient {
		rules = append(rules, Rule{Keyword: k, Kind: KindTransient})
	}
	return rules
}

// KeywordClassifier classifies error text by case-insensitive substring
// matching. A permanent match always wins over a transient match, so text such
// as "timeout waiting for lock: permission denied" is not retried.
type KeywordClassifier struct {
	rules []Rule
}

// NewKeywordClassifier creates a classifier from rules. Keywords are
// lowercased; empty keywords are ignored.
func NewKeywordClassifier(rules []Rule) *KeywordClassifier {
	c := &KeywordClassifier{}
	return c.withRules(rules)
}

// NewDefaultClassifier creates a classifier with DefaultRules.
func NewDefaultClassifier() *KeywordClassifier {
	return NewKeywordClassifier(DefaultRules())
}

// WithRules returns a new classifier containing the receiver's rules followed
// by extra. The receiver is left unchanged.
func (c *KeywordClassifier) WithRules(extra ...Rule) *KeywordClassifier {
	next := &KeywordClassifier{rules: append([]Rule(nil), c.rules...)}
	return next.withRules(extra)
}

func (c *KeywordClassifier) withRules(rules []Rule) *KeywordClassifier {
	for _, r := range rules {
		k := strings.ToLower(strings.TrimSpace(r.Keyword))
		if k == "" || r.Kind == KindUnknown {
			continue
		}
		c.rules = append(c.rules, Rule{Keyword: k, Kind: r.Kind})
	}
	return c
}

// Rules returns a copy of the classifier's rules.
func (c *KeywordClassifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(errorText string) Classification {
	text := strings.ToLower(strings.TrimSpace(errorText))
	if text == "" {
		return Classification{Kind: KindUnknown}
	}

	var transient *Rule
	for i := range c.rules {
		r := &c.rules[i]
		if !strings.Contains(text, r.Keyword) {
			continue
		}
		if r.Kind == KindPermanent {
			return Classification{Kind: KindPermanent, Keyword: r.Keyword}
		}
		if transient == nil {
			transient = r
		}
	}

	if transient != nil {
		return Classification{Kind: KindTransient, Keyword: transient.Keyword}
	}
	return Classification{Kind: KindUnknown}
}
