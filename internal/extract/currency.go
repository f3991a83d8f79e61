package extract

import "regexp"

// Recognition models routinely misread "$" as "s" or "So" and zeros inside
// numbers as the letter o. Both corrections run before field extraction.
var (
	misreadDollar = regexp.MustCompile(`\b[sS][oO0]?(\s?[\d.])`)
	misreadZero   = regexp.MustCompile(`(\d)[oO](\d)`)
)

// CorrectCurrency fixes common OCR confusions in monetary text, e.g.
// "s10.00" becomes "$10.00" and "1o0" becomes "100".
func CorrectCurrency(text string) string {
	text = misreadDollar.ReplaceAllString(text, "$$${1}")
	// Matches cannot overlap, so "1o0o1" needs a second round.
	for {
		fixed := misreadZero.ReplaceAllString(text, "${1}0${2}")
		if fixed == text {
			return text
		}
		text = fixed
	}
}
