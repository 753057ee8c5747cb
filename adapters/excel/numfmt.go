package excel

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// formatKind is how a number format renders a serial number
type formatKind int

const (
	formatNumber formatKind = iota
	formatDate
	formatTime // time of day or elapsed time, no year/month/day part
)

// builtinFormatKind classifies the built-in number format ids. 14-22 and 45-47
// are the standard date/time ones, of which 18-21 and 45-47 carry no date;
// 27-36 and 50-58 are the East Asian locale variants.
func builtinFormatKind(id int) formatKind {
	switch {
	case id >= 18 && id <= 21, id >= 45 && id <= 47:
		return formatTime
	case id >= 14 && id <= 22:
		return formatDate
	case id >= 27 && id <= 36:
		return formatDate
	case id >= 50 && id <= 58:
		return formatDate
	}
	return formatNumber
}

// formatCodeKind classifies a custom number format code. Quoted literals,
// escaped characters and bracketed sections (colors, conditions, locales) are
// ignored before looking for date/time tokens.
func formatCodeKind(code string) formatKind {
	if code == "" || strings.EqualFold(code, "general") {
		return formatNumber
	}

	// Only the first section (positive numbers) matters
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case inBracket:
			if ch == ']' {
				inBracket = false
			}
		case ch == '"':
			inQuote = true
		case ch == '[':
			// [h], [mm], [ss] are elapsed-time tokens, everything else is decoration
			end := strings.IndexByte(code[i:], ']')
			if end > 0 {
				inner := strings.ToLower(code[i+1 : i+end])
				if strings.Trim(inner, "hms") == "" {
					b.WriteString(inner)
					i += end
					continue
				}
			}
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++ // skip the escaped / padding character
		case ch == ';':
			i = len(code)
		default:
			b.WriteByte(ch)
		}
	}

	tokens := strings.ToLower(b.String())
	switch {
	case strings.ContainsAny(tokens, "yd"):
		return formatDate
	case strings.ContainsAny(tokens, "hs"):
		return formatTime
	case strings.ContainsRune(tokens, 'm'):
		// a lone m token is a month
		return formatDate
	}
	return formatNumber
}

// styleCache memoizes the format kind of each cell style id
type styleCache struct {
	f     *excelize.File
	kinds map[int]formatKind
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, kinds: make(map[int]formatKind)}
}

func (c *styleCache) kind(styleID int) formatKind {
	if k, ok := c.kinds[styleID]; ok {
		return k
	}

	k := formatNumber
	if style, err := c.f.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			k = formatCodeKind(*style.CustomNumFmt)
		} else {
			k = builtinFormatKind(style.NumFmt)
		}
	}
	c.kinds[styleID] = k
	return k
}
