package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Tokenizer estimates token counts for cache sizing decisions.
// The external caching service enforces a minimum cacheable context size,
// so we estimate locally before paying for a create-cache call.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New creates a tokenizer with the default encoding
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// CountTokens returns the token count of text
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}
