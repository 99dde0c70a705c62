package sparse

import "unicode"

// Tokenize splits text into lowercase tokens for BM25 indexing. It splits
// on non-alphanumeric boundaries, on camelCase humps (getUserData -> get,
// user, data), on snake_case separators, and on alpha/digit boundaries
// (user123 -> user, 123). Uppercase runs stay together until the hump
// that starts the next word (HTTPServer -> http, server).
//
// The same function is applied to indexed documents and to queries, so
// the two vocabularies always match.
func Tokenize(text string) []string {
	var tokens []string
	runes := []rune(text)

	start := -1
	flush := func(end int) {
		if start < 0 || end <= start {
			return
		}
		tok := make([]rune, end-start)
		for i, r := range runes[start:end] {
			tok[i] = unicode.ToLower(r)
		}
		tokens = append(tokens, string(tok))
		start = -1
	}

	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush(i)
		case start < 0:
			start = i
		default:
			prev := runes[i-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				// alpha/digit boundary
				flush(i)
				start = i
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				// camelCase hump
				flush(i)
				start = i
			case unicode.IsLower(r) && unicode.IsUpper(prev) && i-start > 1:
				// end of an uppercase run: the last upper belongs to
				// the new word (HTTPServer -> HTTP|Server)
				flush(i - 1)
				start = i - 1
			}
		}
	}
	flush(len(runes))

	return tokens
}
