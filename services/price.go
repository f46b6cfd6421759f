package services

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	wonPerEok = 100_000_000
	wonPerMan = 10_000
)

var (
	// eokRegexp captures the 억 (100 million won) component
	eokRegexp = regexp.MustCompile(`(\d+)억`)
	// manRegexp captures the 만원 amount that follows 억
	manRegexp = regexp.MustCompile(`억([\d,]+)`)
	// manOnlyRegexp matches a bare 만원 amount such as "8,500"
	manOnlyRegexp = regexp.MustCompile(`^[\d,]+$`)
)

// ParsePriceToWon converts a listing price to won.
// Examples:
//
//	"3억 5,000" → 350000000
//	"5억"       → 500000000
//	"5,000"     → 50000000
//	"1,000/50"  → 10000000 (deposit of a monthly rent)
//	"-", ""     → 0
func ParsePriceToWon(raw string) int64 {
	s := strings.Join(strings.Fields(raw), "")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "-" {
		return 0
	}

	var won int64
	eok := eokRegexp.FindStringSubmatch(s)
	if eok != nil {
		won += parseDigits(eok[1]) * wonPerEok
	}
	if man := manRegexp.FindStringSubmatch(s); man != nil {
		won += parseDigits(man[1]) * wonPerMan
	} else if eok == nil && manOnlyRegexp.MatchString(s) {
		won = parseDigits(s) * wonPerMan
	}
	return won
}

// FormatWon renders won back in 억/만원 form, e.g. 350000000 → "3억 5,000".
func FormatWon(won int64) string {
	if won <= 0 {
		return "-"
	}
	eok := won / wonPerEok
	man := (won % wonPerEok) / wonPerMan
	switch {
	case eok > 0 && man > 0:
		return strconv.FormatInt(eok, 10) + "억 " + groupThousands(man)
	case eok > 0:
		return strconv.FormatInt(eok, 10) + "억"
	default:
		return groupThousands(man)
	}
}

func parseDigits(s string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
