package analysis

import (
	"strings"
	"unicode"

	"docvoice/internal/model"
)

// MaxSummaryWords bounds the stored summary.
const MaxSummaryWords = 200

const labelTrim = " \t*_`#>"

// ParseAnalysis turns a free-text provider reply into an AnalysisResult.
// It is pure and deterministic: the same reply always yields the same result.
func ParseAnalysis(reply string) model.AnalysisResult {
	lines := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")

	res := model.AnalysisResult{Language: model.LanguageEN, Keywords: []string{}}

	if i := findLine(lines, "language"); i >= 0 {
		res.Language = normalizeLanguage(afterColon(lines[i]))
	}
	if i := findLine(lines, "summary"); i >= 0 {
		res.Summary = truncateWords(strings.Trim(afterColon(lines[i]), labelTrim), MaxSummaryWords)
	}
	if i := findLine(lines, "topics", "concepts"); i >= 0 {
		raw := strings.Trim(afterColon(lines[i]), labelTrim)
		if raw == "" {
			raw = strings.Join(listBelow(lines[i+1:]), ",")
		}
		res.Keywords = splitKeywords(raw)
	}
	return res
}

// findLine returns the index of the first line containing any token, case-insensitively.
func findLine(lines []string, tokens ...string) int {
	for i, l := range lines {
		lower := strings.ToLower(l)
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				return i
			}
		}
	}
	return -1
}

// afterColon returns everything after the first colon, colons included.
func afterColon(line string) string {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return rest
}

func normalizeLanguage(s string) model.Language {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		switch w {
		case "ru", "rus", "russian", "русский":
			return model.LanguageRU
		case "en", "eng", "english", "английский":
			return model.LanguageEN
		}
	}
	return model.LanguageEN
}

// listBelow collects bullet or numbered items directly under a label line.
func listBelow(lines []string) []string {
	var items []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			break
		}
		switch {
		case strings.HasPrefix(t, "-"), strings.HasPrefix(t, "*"), strings.HasPrefix(t, "•"):
			items = append(items, strings.TrimLeft(t, "-*•"))
		case len(t) > 1 && t[0] >= '0' && t[0] <= '9' && strings.Contains(t[:min(len(t), 4)], "."):
			_, item, _ := strings.Cut(t, ".")
			items = append(items, item)
		default:
			return items
		}
	}
	return items
}

func splitKeywords(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if k := strings.Trim(part, labelTrim+"."); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
