package quiz

import "strings"

// KeyResolver maps a question to its canonical correct option.
type KeyResolver interface {
	Resolve(q QuestionRecord, useFinalKey bool) Option
}

// ResolverFunc adapts a plain function to KeyResolver.
type ResolverFunc func(q QuestionRecord, useFinalKey bool) Option

// Resolve calls f.
func (f ResolverFunc) Resolve(q QuestionRecord, useFinalKey bool) Option {
	return f(q, useFinalKey)
}

// DefaultResolver applies ResolveAnswerKey.
var DefaultResolver KeyResolver = ResolverFunc(ResolveAnswerKey)

// ResolveAnswerKey returns the correct option for q. The final key wins when
// useFinalKey is set and the final key is non-blank; otherwise the provisional key
// is used. A missing or unreadable key yields OptionNone, never an error.
func ResolveAnswerKey(q QuestionRecord, useFinalKey bool) Option {
	if useFinalKey && !isBlank(q.CorrectFinal) {
		return NormalizeKey(*q.CorrectFinal)
	}
	if !isBlank(q.CorrectProvisional) {
		return NormalizeKey(*q.CorrectProvisional)
	}
	return OptionNone
}

// NormalizeKey converts the spellings found in question banks ("b", "2",
// "Option B", "B) text") to an Option. Unrecognised input yields OptionNone.
func NormalizeKey(raw string) Option {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return OptionNone
	}

	switch s {
	case "1":
		return OptionA
	case "2":
		return OptionB
	case "3":
		return OptionC
	case "4":
		return OptionD
	}

	if rest, ok := strings.CutPrefix(s, "OPTION "); ok && len(rest) == 1 {
		if o := Option(rest); o.Valid() {
			return o
		}
	}

	if o := Option(s[:1]); o.Valid() {
		return o
	}
	return OptionNone
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
