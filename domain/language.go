package domain

import (
	"sort"
	"strings"
	"unicode/utf8"
)

var supportedLanguages = func() []string {
	langs := []string{
		"English",
		"Spanish", "French", "German", "Portuguese", "Italian", "Dutch", "Russian",
		"Chinese (Simplified)", "Chinese (Traditional)", "Japanese", "Korean",
		"Arabic", "Hindi", "Bengali", "Turkish", "Vietnamese", "Polish", "Ukrainian", "Romanian",
		"Persian (Farsi)", "Thai", "Malay / Indonesian", "Hebrew",
	}
	sort.Strings(langs)
	return langs
}()

// SupportedLanguages returns the analysis languages in alphabetical order.
func SupportedLanguages() []string {
	out := make([]string, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// ValidateAnalysisLanguage returns the canonical spelling of lang.
func ValidateAnalysisLanguage(lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return DefaultAnalysisLanguage, nil
	}
	if utf8.RuneCountInString(lang) > AnalysisLanguageMaxLength {
		return "", &ValidationError{Field: "analysis_language", Message: "too long"}
	}
	for _, l := range supportedLanguages {
		if strings.EqualFold(l, lang) {
			return l, nil
		}
	}
	return "", &ValidationError{Field: "analysis_language", Message: "unsupported language " + lang}
}
