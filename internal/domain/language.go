package domain

import "strings"

// Language identifies the runtime a submission is executed with
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageCpp        Language = "cpp"
	LanguageC          Language = "c"
	LanguageGo         Language = "go"

	DefaultLanguage = LanguagePython
)

var languages = map[Language]struct{}{
	LanguagePython:     {},
	LanguageJavaScript: {},
	LanguageJava:       {},
	LanguageCpp:        {},
	LanguageC:          {},
	LanguageGo:         {},
}

// ParseLanguage normalises a client supplied identifier. Empty input
// yields DefaultLanguage.
func ParseLanguage(s string) (Language, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultLanguage, true
	}
	l := Language(s)
	return l, l.Valid()
}

func (l Language) Valid() bool {
	_, ok := languages[l]
	return ok
}

func (l Language) String() string {
	return string(l)
}
