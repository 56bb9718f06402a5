// Package normalizer приводит шумные названия ЖК к сравнимой строке токенов.
// Все функции чистые и идемпотентные: N(N(x)) == N(x).
package normalizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"unification-service/internal/core/domain"
)

// rules - набор префиксов и стоп-слов одного режима
type rules struct {
	prefixes  []*regexp.Regexp
	stopWords map[string]struct{}
	// allowShort - короткие токены, которые не выбрасываются
	allowShort map[string]struct{}
}

var (
	quoteStripper = strings.NewReplacer(
		"\"", "", "«", "", "»", "", "“", "", "”", "", "„", "",
	)
	parenthesized = regexp.MustCompile(`\([^)]*\)`)
	// \w в regexp Go - только ASCII, поэтому классы букв и цифр заданы явно
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s&]`)
	whitespace = regexp.MustCompile(`\s+`)
)

func compilePrefixes(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`^`+p))
	}
	return out
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var fullRules = rules{
	prefixes: compilePrefixes(
		`жк\s+`, `жилой\s+комплекс\s+`, `комплекс\s+`, `клубный\s+дом\s+`,
		`квартал\s+`, `микрорайон\s+`, `экогород\s+`, `ток\s+`, `дом\s+по\s+ул(?:\.\s*|\s+)`,
	),
	stopWords: wordSet(
		"жк", "жилой", "комплекс", "клубный", "дом", "дома", "квартиры",
		"литер", "литера", "секции", "секция", "этап", "очередь", "паркинг",
		"квартал", "микрорайон", "апартаментов", "апартаменты", "высотных",
		"клубная", "резиденция",
	),
	allowShort: wordSet("8", "no", "go", "le"),
}

var keyWordRules = rules{
	prefixes: compilePrefixes(
		`жк\s+`, `жилой\s+комплекс\s+`, `комплекс\s+`, `клубный\s+дом\s+`,
		`комплекс\s+апартаментов\s+`, `комплекс\s+высотных\s+домов\s+`,
		`комплекс\s+жилых\s+апартаментов\s+`, `квартал\s+`, `микрорайон\s+`,
		`знаковый\s+квартал\s+`, `красочный\s+квартал\s+`, `городской\s+квартал\s+`,
		`экогород\s+`, `ток\s+`, `дом\s+по\s+ул(?:\.\s*|\s+)`,
	),
	stopWords: wordSet(
		"жк", "жилой", "комплекс", "комлпекс", "клубный", "дом", "дома",
		"квартиры", "литер", "литера", "секции", "секция", "этап", "очередь",
		"паркинг", "квартал", "микрорайон", "апартаментов", "апартаменты",
		"высотных", "экогород", "клубная", "резиденция", "ток",
	),
	allowShort: wordSet("8", "no", "go", "le"),
}

// domrfRules - мягкая очистка названий госреестра для пост-фильтра кандидатов
var domrfRules = rules{
	prefixes: compilePrefixes(
		`жк\s+`, `жилой\s+комплекс\s+`, `комплекс\s+`, `клубная\s+резиденция\s+`,
		`комплекс\s+апартаментов\s+`, `комплекс\s+жилых\s+апартаментов\s+`,
	),
	stopWords: wordSet(
		"жк", "жилой", "комплекс", "клубная", "резиденция", "литер", "литера",
		"секции", "секция", "этап", "очередь", "паркинг", "квартал",
	),
}

// Normalize - полная нормализация. Пустой или шумовой вход дает пустую строку.
func Normalize(name string) string {
	return apply(name, fullRules, true)
}

// KeyWords - режим ключевых слов: дополнительные префиксы и стоп-слова
func KeyWords(name string) string {
	return apply(name, keyWordRules, true)
}

// CleanDomRFName - очистка названия DomRF без удаления пунктуации и скобок
func CleanDomRFName(name string) string {
	return apply(name, domrfRules, false)
}

// NormalizeProbe - то же, что Normalize, но пустое имя пробы является ошибкой EmptyName
func NormalizeProbe(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", domain.NewError(domain.ErrorKindEmptyName, "normalize", "probe has no usable name")
	}
	return Normalize(name), nil
}

func apply(name string, r rules, stripPunctuation bool) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	s := norm.NFC.String(strings.ToLower(norm.NFC.String(name)))
	s = quoteStripper.Replace(s)
	if stripPunctuation {
		s = parenthesized.ReplaceAllString(s, "")
		s = nonWord.ReplaceAllString(s, "")
	}
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))

	// снятие префиксов и стоп-слов повторяется до неподвижной точки:
	// "дом экогород сказка" -> "экогород сказка" -> "сказка"
	for {
		next := filterTokens(stripPrefixes(s, r.prefixes), r)
		if next == s {
			return s
		}
		s = next
	}
}

func stripPrefixes(s string, prefixes []*regexp.Regexp) string {
	for changed := true; changed; {
		changed = false
		for _, p := range prefixes {
			if loc := p.FindStringIndex(s); loc != nil {
				s = s[loc[1]:]
				changed = true
			}
		}
	}
	return s
}

func filterTokens(s string, r rules) string {
	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		tok = dropStopParts(tok, r.stopWords)
		if tok == "" || isShortToken(tok, r.allowShort) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// dropStopParts убирает стоп-слова внутри токена; границей слова служит и '&'
func dropStopParts(tok string, stop map[string]struct{}) string {
	if _, ok := stop[tok]; ok {
		return ""
	}
	if !strings.Contains(tok, "&") {
		return tok
	}
	parts := strings.Split(tok, "&")
	for i, p := range parts {
		if _, ok := stop[p]; ok {
			parts[i] = ""
		}
	}
	return strings.Join(parts, "&")
}

func isShortToken(tok string, allow map[string]struct{}) bool {
	if utf8.RuneCountInString(tok) > 2 {
		return false
	}
	if _, ok := allow[tok]; ok {
		return false
	}
	return isAll(tok, unicode.IsDigit) || isAll(tok, unicode.IsLetter)
}

func isAll(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return s != ""
}

// SignificantTokens - токены не короче minLen рун, в порядке появления
func SignificantTokens(s string, minLen int) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		if utf8.RuneCountInString(tok) >= minLen {
			out = append(out, tok)
		}
	}
	return out
}
