// Package ocr normalizes OCR/accessibility text so condition checkers can
// match expected keywords against noisy recognized text: half-width
// folding, case folding, confusable-character remapping, and a tiered
// containment check (exact, substring, word-subset, fuzzy).
package ocr

import (
	"strings"
	"unicode"
)

// ProcessedText is text carried through OCR normalization in several forms,
// each useful to a different tier of SmartContains matching.
type ProcessedText struct {
	Original string
	Cleaned  string
	NoSpaces string
	Words    []string
	Chars    []rune
}

// confusable maps visually-similar characters (common OCR misreads) onto a
// canonical character.
var confusable = map[rune]rune{
	'O': '0', 'o': '0',
	'l': '1', 'I': '1', '丨': '1', '｜': '1',
}

// Process normalizes raw OCR/XML text into a ProcessedText ready for
// matching.
func Process(raw string) ProcessedText {
	folded := toHalfWidth(raw)
	folded = strings.ToLower(folded)
	cleaned := strings.Join(strings.FieldsFunc(normalizeConfusions(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}), " ")
	noSpaces := strings.Join(strings.Fields(cleaned), "")

	return ProcessedText{
		Original: raw,
		Cleaned:  cleaned,
		NoSpaces: noSpaces,
		Words:    strings.Fields(cleaned),
		Chars:    []rune(noSpaces),
	}
}

// toHalfWidth folds full-width ASCII variants (U+FF01..U+FF5E) down to their
// plain ASCII equivalents, and full-width space to plain space.
func toHalfWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '　':
			b.WriteRune(' ')
		case r >= '！' && r <= '～':
			b.WriteRune(r - 0xFEE0)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeConfusions remaps characters that OCR engines commonly confuse
// with one another (O/0, l/I/丨/｜ -> 1) onto a single canonical form, so
// keyword matching doesn't fail on a misread digit vs. letter.
func normalizeConfusions(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if mapped, ok := confusable[r]; ok {
			b.WriteRune(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SmartContains checks whether needle is "present" in haystack using four
// increasingly permissive tiers: exact/substring match on the cleaned text,
// substring match ignoring whitespace, word-subset match, and finally a
// fuzzy ratio match (threshold 0.8) of the two whitespace-stripped forms via a Ratcliff/Obershelp-style matching
// ratio — the stdlib has no equivalent to Python's difflib.SequenceMatcher,
// so it's implemented here directly.
func SmartContains(haystack, needle string) bool {
	h := Process(haystack)
	n := Process(needle)

	if n.Cleaned == "" {
		return false
	}

	if strings.Contains(h.Cleaned, n.Cleaned) {
		return true
	}

	if strings.Contains(h.NoSpaces, n.NoSpaces) {
		return true
	}

	if wordSubsetMatch(h.Words, n.Words) {
		return true
	}

	return FuzzyRatio(h.NoSpaces, n.NoSpaces) >= 0.8
}

// wordSubsetMatch reports whether every word of needle appears somewhere in
// haystack's word set.
func wordSubsetMatch(haystackWords, needleWords []string) bool {
	if len(needleWords) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(haystackWords))
	for _, w := range haystackWords {
		set[w] = struct{}{}
	}
	for _, w := range needleWords {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// FuzzyRatio computes a Ratcliff/Obershelp similarity ratio between two
// strings: twice the total length of matching blocks divided by the sum of
// both lengths, recursing into the gaps on either side of the longest
// common substring found at each step. Returns a value in [0, 1].
func FuzzyRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	matches := matchingBlockLength(ra, rb)
	return 2.0 * float64(matches) / float64(len(ra)+len(rb))
}

func matchingBlockLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, length := longestCommonSubstring(a, b)
	if length == 0 {
		return 0
	}

	total := length
	total += matchingBlockLength(a[:ai], b[:bi])
	total += matchingBlockLength(a[ai+length:], b[bi+length:])
	return total
}

// longestCommonSubstring returns the start indices (in a and b) and length
// of the longest common contiguous run between a and b.
func longestCommonSubstring(a, b []rune) (int, int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	bestLen, bestAI, bestBI := 0, 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestLen {
					bestLen = curr[j]
					bestAI = i - curr[j]
					bestBI = j - curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return bestAI, bestBI, bestLen
}

// ExtractXMLText pulls visible text out of an Android accessibility-tree
// XML dump: every "text" and "content-desc" attribute value, in document
// order, space-joined.
func ExtractXMLText(xmlBlob string) string {
	var parts []string
	parts = append(parts, extractAttr(xmlBlob, "text")...)
	parts = append(parts, extractAttr(xmlBlob, "content-desc")...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func extractAttr(xmlBlob, attr string) []string {
	var out []string
	needle := attr + `="`
	for {
		i := strings.Index(xmlBlob, needle)
		if i < 0 {
			break
		}
		rest := xmlBlob[i+len(needle):]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			break
		}
		val := rest[:end]
		if val != "" && hasVisibleRune(val) {
			out = append(out, val)
		}
		xmlBlob = rest[end+1:]
	}
	return out
}

func hasVisibleRune(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
