package middleware

import (
	"context"
	"strconv"

	"github.com/hattiebot/toolchat/internal/core"
)

// suffixReserve is runes reserved for the truncation note.
const suffixReserve = 80

// Truncate caps s at maxRunes runes, keeping the start and noting the original length.
// maxRunes <= 0 disables truncation.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	keep := maxRunes - suffixReserve
	if keep <= 0 {
		keep = 1
	}
	return string(r[:keep]) + "\n...[output truncated, total " + strconv.Itoa(len(r)) + " runes]"
}

// TruncatingExecutor caps outcome text from next so a huge file or page cannot
// flood the model context.
type TruncatingExecutor struct {
	next     core.ToolExecutor
	maxRunes int
}

// NewTruncatingExecutor returns an executor that truncates results from next.
func NewTruncatingExecutor(next core.ToolExecutor, maxRunes int) *TruncatingExecutor {
	return &TruncatingExecutor{next: next, maxRunes: maxRunes}
}

func (t *TruncatingExecutor) Execute(ctx context.Context, name, argsJSON string) (core.Outcome, error) {
	out, err := t.next.Execute(ctx, name, argsJSON)
	if err != nil {
		return out, err
	}
	out.Text = Truncate(out.Text, t.maxRunes)
	return out, nil
}
