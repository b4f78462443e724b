package format

import (
	"fmt"
	"io"
	"strings"
)

// FITS layout constants.
const (
	fitsBlockSize   = 2880
	fitsCardSize    = 80
	fitsMaxString   = 68 // longest quoted string value that fits a card
	fitsMaxFields   = 999
	fitsValueColumn = 20 // fixed-format values end in column 30
)

// fitsHeader accumulates 80 character header cards.
type fitsHeader struct {
	cards []string
}

func (h *fitsHeader) card(key, value, comment string) {
	c := fmt.Sprintf("%-8s= %s", key, value)
	if comment != "" {
		c += " / " + comment
	}
	h.cards = append(h.cards, c)
}

func (h *fitsHeader) logical(key string, v bool, comment string) {
	s := "F"
	if v {
		s = "T"
	}
	h.card(key, fmt.Sprintf("%*s", fitsValueColumn, s), comment)
}

func (h *fitsHeader) integer(key string, v int64, comment string) {
	h.card(key, fmt.Sprintf("%*d", fitsValueColumn, v), comment)
}

// str writes a character string value: quotes doubled, padded to at least
// eight characters and truncated to fit the card.
func (h *fitsHeader) str(key, v, comment string) {
	v = asciiOnly(v)
	escaped := strings.ReplaceAll(v, "'", "''")
	for len(escaped) > fitsMaxString {
		v = v[:len(v)-1]
		escaped = strings.ReplaceAll(v, "'", "''")
	}
	if len(escaped) < 8 {
		escaped += strings.Repeat(" ", 8-len(escaped))
	}
	h.card(key, fmt.Sprintf("%-*s", fitsValueColumn, "'"+escaped+"'"), comment)
}

// WriteTo writes the cards followed by END, space padded to a whole block.
func (h *fitsHeader) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, c := range h.cards {
		b.WriteString(padCard(c))
	}
	b.WriteString(padCard("END"))
	if rem := b.Len() % fitsBlockSize; rem != 0 {
		b.WriteString(strings.Repeat(" ", fitsBlockSize-rem))
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func padCard(c string) string {
	if len(c) > fitsCardSize {
		return c[:fitsCardSize]
	}
	return c + strings.Repeat(" ", fitsCardSize-len(c))
}

// asciiOnly replaces characters a header cannot hold with '?'.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, s)
}
