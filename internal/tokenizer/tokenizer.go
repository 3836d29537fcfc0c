// Package tokenizer provides the lexical analysis used for BM25 index keys
// and query terms. Korean text is split into morpheme-like units by script
// run and trailing-particle stripping; Latin text is lowercased and split on
// non-alphanumerics.
package tokenizer

import (
	"strings"
	"unicode"
)

// josa lists the trailing particles stripped from Hangul tokens, longest
// first so compound particles match before their suffixes.
var josa = []string{
	"에서는", "으로는", "에게서", "한테서",
	"에서", "에게", "한테", "으로", "이나", "이랑", "까지", "부터", "처럼", "보다", "마다", "조차", "마저",
	"은", "는", "이", "가", "을", "를", "의", "에", "와", "과", "도", "만", "로", "랑", "나", "요",
}

// Tokenize lowercases and trims text, then splits it into tokens by script
// run. Hangul runs have trailing particles stripped when the stem keeps at
// least two characters. Deterministic for fixed input.
func Tokenize(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	var tokens []string
	var run []rune
	var runKind scriptKind

	flush := func() {
		if len(run) == 0 {
			return
		}
		tok := string(run)
		if runKind == scriptHangul {
			tok = stripJosa(tok)
		}
		if tok != "" {
			tokens = append(tokens, tok)
		}
		run = run[:0]
	}

	for _, r := range text {
		k := kindOf(r)
		if k == scriptNone {
			flush()
			continue
		}
		if len(run) > 0 && k != runKind {
			flush()
		}
		runKind = k
		run = append(run, r)
	}
	flush()

	if len(tokens) == 0 {
		// Analyzer found nothing usable; fall back to whitespace split so
		// the caller still gets terms for exotic scripts.
		return strings.Fields(text)
	}
	return tokens
}

type scriptKind int

const (
	scriptNone scriptKind = iota
	scriptHangul
	scriptLatin
)

func kindOf(r rune) scriptKind {
	switch {
	case unicode.Is(unicode.Hangul, r):
		return scriptHangul
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return scriptLatin
	default:
		return scriptNone
	}
}

// stripJosa removes one trailing particle when the remaining stem is at
// least two runes, so short content words like 물 and 밥 survive intact.
func stripJosa(tok string) string {
	runes := []rune(tok)
	for _, p := range josa {
		pr := []rune(p)
		if len(runes) >= len(pr)+2 && strings.HasSuffix(tok, p) {
			return string(runes[:len(runes)-len(pr)])
		}
	}
	return tok
}
