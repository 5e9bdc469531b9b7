package shaping

import (
	"unicode"

	"github.com/go-text/typesetting/language"
	"golang.org/x/text/unicode/bidi"
)

// simpleScripts are scripts whose text can map one nominal glyph per
// character without reordering, ligation, or contextual forms. Everything
// else goes through full shaping.
var simpleScripts = map[language.Script]bool{
	language.Latin:    true,
	language.Cyrillic: true,
	language.Greek:    true,
	language.Han:      true,
	language.Hiragana: true,
	language.Katakana: true,
	language.Hangul:   true,
	language.Bopomofo: true,
}

// isSimpleRune reports whether r can bypass full shaping: a printable
// character of a simple script that is neither a combining mark nor a
// format control (joiners, variation selectors).
func isSimpleRune(r rune) bool {
	if r < 0x20 {
		return false
	}
	if unicode.In(r, unicode.Mn, unicode.Me, unicode.Mc, unicode.Cf) {
		return false
	}
	s := language.LookupScript(r)
	if s == language.Common || s == language.Inherited {
		return true
	}
	return simpleScripts[s]
}

// resolveScript returns the script of r, substituting prev for the
// Common and Inherited pseudo-scripts so punctuation and combining marks
// stay inside the surrounding run.
func resolveScript(r rune, prev language.Script) language.Script {
	s := language.LookupScript(r)
	if s == language.Common || s == language.Inherited {
		return prev
	}
	return s
}

// AnalyzeScript implements Shaper.
// Bidi embedding levels come from the Unicode bidi algorithm over the
// analyzed slice; script runs additionally split on script changes with
// Common/Inherited characters attached to the preceding run.
func (s *GoTextShaper) AnalyzeScript(text []rune, position, length int) ([]ScriptRun, error) {
	if length <= 0 || position < 0 || position+length > len(text) {
		return nil, nil
	}
	slice := text[position : position+length]
	levels := bidiLevels(slice)

	runs := make([]ScriptRun, 0, 1)
	cur := ScriptRun{Position: position, Script: language.Latin}
	curScript := language.Script(0)

	for i, r := range slice {
		rs := resolveScript(r, curScript)
		if curScript == 0 {
			curScript = rs
		}
		rtl := levels[i]&1 == 1
		if i > 0 && (rs != curScript || rtl != cur.RTL) {
			cur.Length = position + i - cur.Position
			cur.Script = curScript
			runs = append(runs, cur)
			cur = ScriptRun{Position: position + i}
			curScript = rs
		}
		cur.RTL = rtl
	}
	cur.Length = position + length - cur.Position
	cur.Script = curScript
	if curScript == 0 {
		cur.Script = language.Latin
	}
	runs = append(runs, cur)
	return runs, nil
}

// bidiLevels computes a 0/1 embedding level per rune. Neutral runs
// resolve LTR, matching the terminal's fixed column order.
func bidiLevels(runes []rune) []int {
	levels := make([]int, len(runes))

	var p bidi.Paragraph
	if _, err := p.SetString(string(runes), bidi.DefaultDirection(bidi.Neutral)); err != nil {
		return levels
	}
	ordering, err := p.Order()
	if err != nil {
		return levels
	}

	// Run.Pos returns inclusive rune indices.
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		start, end := run.Pos()
		if run.Direction() != bidi.RightToLeft {
			continue
		}
		for j := start; j <= end && j < len(levels); j++ {
			levels[j] = 1
		}
	}
	return levels
}
