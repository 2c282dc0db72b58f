package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError carries the byte offset within the original text where
// parsing failed, per spec.md §4.7's "greedy char stream" parser contract.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("key parse error at byte %d: %s", e.Offset, e.Msg)
}

// Parse parses a single key specification string such as "<c-a>",
// "<f12>", "<space>", or a bare character.
func Parse(spec string) (Key, error) {
	if spec == "" {
		return Key{}, &ParseError{Offset: 0, Msg: "empty key specification"}
	}
	if strings.HasPrefix(spec, "<") && strings.HasSuffix(spec, ">") && len(spec) >= 2 {
		return parseBracketed(spec[1 : len(spec)-1])
	}
	runes := []rune(spec)
	if len(runes) != 1 {
		return Key{}, &ParseError{Offset: 0, Msg: fmt.Sprintf("not a single key: %q", spec)}
	}
	return Key{Kind: KeyChar, Rune: runes[0]}, nil
}

// MustParse parses spec and panics on error. Use only for known-valid
// specs in initialization code, matching internal/input/key/parser.go's
// MustParse.
func MustParse(spec string) Key {
	k, err := Parse(spec)
	if err != nil {
		panic("wire: invalid key specification " + spec + ": " + err.Error())
	}
	return k
}

func parseBracketed(inner string) (Key, error) {
	lower := strings.ToLower(inner)

	switch lower {
	case "space":
		return Key{Kind: KeyChar, Rune: ' '}, nil
	case "less":
		return Key{Kind: KeyChar, Rune: '<'}, nil
	case "greater":
		return Key{Kind: KeyChar, Rune: '>'}, nil
	}
	if kind, ok := namesToKind[lower]; ok {
		return Key{Kind: kind}, nil
	}

	if strings.HasPrefix(lower, "f") {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 99 {
			return Key{Kind: KeyF, N: n}, nil
		}
	}

	if len(lower) >= 3 && lower[1] == '-' {
		r := []rune(inner)[2]
		switch lower[0] {
		case 'c':
			return Key{Kind: KeyCtrl, Rune: r}, nil
		case 'a':
			return Key{Kind: KeyAlt, Rune: r}, nil
		}
	}

	return Key{}, &ParseError{Offset: 0, Msg: fmt.Sprintf("unknown key spec <%s>", inner)}
}

// ParseSequence parses a concatenation of key specs (bracketed or bare
// chars run together), returning every key and an error carrying the byte
// offset of the first failure.
func ParseSequence(s string) ([]Key, error) {
	var keys []Key
	i := 0
	for i < len(s) {
		if s[i] == '<' {
			end := strings.IndexByte(s[i:], '>')
			if end < 0 {
				return keys, &ParseError{Offset: i, Msg: "unmatched '<'"}
			}
			spec := s[i : i+end+1]
			k, err := Parse(spec)
			if err != nil {
				if pe, ok := err.(*ParseError); ok {
					pe.Offset += i
				}
				return keys, err
			}
			keys = append(keys, k)
			i += end + 1
			continue
		}
		r := []rune(s[i:])[0]
		keys = append(keys, Key{Kind: KeyChar, Rune: r})
		i += len(string(r))
	}
	return keys, nil
}
