// Package rules evaluates contract text against rule-pack policy: four
// fixed Tier 1 compliance checks plus a registry-dispatched Tier 2 for
// pack-declared custom rules.
package rules

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyRe = regexp.MustCompile(`(?i)(\$|USD|US\$|EUR|€|GBP|£|AUD|A\$)\s?(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)(?:\s?(million|billion|thousand))?`)

	// Amounts without a leading currency symbol still count when followed
	// by a currency word.
	moneyWordRe = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)(?:\s?(million|billion|thousand))?\s?(dollars|usd|euros?|pounds sterling)`)

	shareUnitRe = regexp.MustCompile(`(?i)\b(share|shares|unit|units|warrant|warrants|option|options)\b`)

	monthsFeesRe = regexp.MustCompile(`(?i)\b(\d{1,3}|twelve|six|three|twenty-four)\s*(?:\(\d+\))?\s*months?(?:['’]s)?\s+of\s+(?:service\s+)?(?:fees|payments|charges)`)

	signatureNoiseRe = regexp.MustCompile(`(?i)(signature page follows|confidential|translation, for reference only)`)
)

// Money is one monetary amount located in text.
type Money struct {
	Amount   float64
	Currency string
	Start    int
	End      int
}

// ParseMoney finds monetary amounts with credible currency context. Bare
// numbers without a currency symbol or word are ambiguous and skipped, as
// are amounts sitting in share/unit language ("200 million shares").
func ParseMoney(text string) []Money {
	var out []Money
	seen := make(map[int]bool)

	add := func(start, end int, currency, amount, scale string) {
		if seen[start] {
			return
		}
		if shareContext(text, start, end) || noiseLine(text, start) {
			return
		}
		amt, err := strconv.ParseFloat(strings.ReplaceAll(amount, ",", ""), 64)
		if err != nil {
			return
		}
		switch strings.ToLower(scale) {
		case "thousand":
			amt *= 1e3
		case "million":
			amt *= 1e6
		case "billion":
			amt *= 1e9
		}
		seen[start] = true
		out = append(out, Money{Amount: amt, Currency: currency, Start: start, End: end})
	}

	for _, m := range moneyRe.FindAllStringSubmatchIndex(text, -1) {
		add(m[0], m[1], text[m[2]:m[3]], text[m[4]:m[5]], group(text, m, 3))
	}
	for _, m := range moneyWordRe.FindAllStringSubmatchIndex(text, -1) {
		add(m[0], m[1], group(text, m, 3), text[m[2]:m[3]], group(text, m, 2))
	}
	return out
}

// MaxMoney returns the largest credible monetary amount in text.
func MaxMoney(text string) (Money, bool) {
	var best Money
	found := false
	for _, m := range ParseMoney(text) {
		// Ties keep the earliest occurrence so results are deterministic.
		if !found || m.Amount > best.Amount {
			best = m
			found = true
		}
	}
	return best, found
}

// FeeMultiplier parses "{N} months of fees" style cap expressions and
// returns the cap as a multiple of annual fees.
func FeeMultiplier(section string) (float64, []int, bool) {
	m := monthsFeesRe.FindStringSubmatchIndex(section)
	if m == nil {
		return 0, nil, false
	}
	word := strings.ToLower(section[m[2]:m[3]])
	months := 0.0
	switch word {
	case "twelve":
		months = 12
	case "six":
		months = 6
	case "three":
		months = 3
	case "twenty-four":
		months = 24
	default:
		n, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return 0, nil, false
		}
		months = n
	}
	return months / 12.0, []int{m[0], m[1]}, true
}

func group(text string, idx []int, n int) string {
	if 2*n+1 >= len(idx) || idx[2*n] < 0 {
		return ""
	}
	return text[idx[2*n]:idx[2*n+1]]
}

// shareContext reports whether a span sits in equity language rather than
// monetary consideration.
func shareContext(text string, start, end int) bool {
	ws := start - 40
	if ws < 0 {
		ws = 0
	}
	we := end + 40
	if we > len(text) {
		we = len(text)
	}
	return shareUnitRe.MatchString(text[ws:we])
}

// noiseLine reports whether the offset falls on a signature-page or
// watermark line that should not contribute amounts.
func noiseLine(text string, offset int) bool {
	ls := strings.LastIndexByte(text[:offset], '\n') + 1
	le := strings.IndexByte(text[offset:], '\n')
	if le < 0 {
		le = len(text)
	} else {
		le += offset
	}
	return signatureNoiseRe.MatchString(text[ls:le])
}
