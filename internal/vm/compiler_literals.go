package vm

import (
	"strconv"
	"strings"
)

// parseInt and parseFloat convert a lexed numeric literal's source text
// into its runtime value, mirroring the teacher's strconv-based literal
// conversion in internal/lexer/lexer.go. Invalid literals (which the
// lexer's character classes should never produce) fall back to zero
// rather than panicking.
func parseInt(lexeme string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(lexeme, "_", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(lexeme string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(lexeme, "_", ""), 64)
	if err != nil {
		return 0
	}
	return f
}
