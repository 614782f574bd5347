// Package moderation masks blacklisted words in outgoing message bodies.
package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator censors chat bodies against a dictionary of words.
// Matching ignores case, punctuation, spacing and common leet substitutions,
// so "B.4.d-g3r" is found as "badger". A match never spans two lines and must
// start and end on a word boundary: "snakes" or "rattlesnake" are left alone.
type Moderator struct {
	machine     *goahocorasick.Machine
	replacement rune
	log         *slog.Logger
}

// folded is a line reduced to the runes that take part in matching.
// positions[i] is the index in the line of runes[i].
type folded struct {
	runes     []rune
	positions []int
}

// NewModerator builds the automaton over the folded form of words.
// Words made of punctuation or spaces only are skipped.
func NewModerator(words []string, replacement rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		pattern := fold([]rune(word)).runes
		if len(pattern) == 0 {
			log.Debug("Skipping censored word without letters", "word", word)
			continue
		}
		patterns = append(patterns, pattern)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{machine: machine, replacement: replacement, log: log}, nil
}

// Censor returns body with every match replaced rune by rune, line breaks and
// spacing kept, and the dictionary words found in order of appearance.
func (m *Moderator) Censor(body string) (string, []string) {
	if body == "" {
		return body, nil
	}
	lines := strings.Split(body, "\n")
	var found []string
	for i, line := range lines {
		censored, words := m.censorLine([]rune(line))
		lines[i] = string(censored)
		found = append(found, words...)
	}
	if len(found) == 0 {
		return body, nil
	}
	m.log.Debug("Censored words", "count", len(found))
	return strings.Join(lines, "\n"), found
}

func (m *Moderator) censorLine(line []rune) ([]rune, []string) {
	f := fold(line)
	if len(f.runes) == 0 {
		return line, nil
	}
	var words []string
	for _, term := range m.machine.MultiPatternSearch(f.runes, false) {
		end := term.Pos + len(term.Word)
		if term.Pos < 0 || end > len(f.positions) {
			continue
		}
		from, to := f.positions[term.Pos], f.positions[end-1]+1
		if !isBoundary(line, from-1) || !isBoundary(line, to) {
			continue
		}
		for i := from; i < to; i++ {
			line[i] = m.replacement
		}
		words = append(words, string(term.Word))
	}
	return line, words
}

// isBoundary tells whether line[i] can't continue a word, out of range included.
func isBoundary(line []rune, i int) bool {
	if i < 0 || i >= len(line) {
		return true
	}
	r := line[i]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func fold(input []rune) folded {
	f := folded{runes: make([]rune, 0, len(input)), positions: make([]int, 0, len(input))}
	for i, r := range input {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.positions = append(f.positions, i)
	}
	return f
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	}
	return r
}
