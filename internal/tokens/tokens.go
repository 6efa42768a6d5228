// Package tokens estimates prompt sizes with the cl100k_base encoding. The
// estimate feeds metrics and the journal; it is never used to trim a request.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"kopiloka-assistant/internal/domain"
)

// perTurnOverhead approximates the role and separator tokens chat formats add
// around each turn.
const perTurnOverhead = 3

type Counter struct {
	enc tokenizer.Codec
}

func New() (*Counter, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("tokens: load encoding: %w", err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the estimated prompt tokens for a system instruction plus turns.
// Text the encoder rejects counts as zero.
func (c *Counter) Count(system string, msgs []domain.ChatMessage) int {
	total := 0
	if system != "" {
		total += c.text(system) + perTurnOverhead
	}
	for _, m := range msgs {
		total += c.text(m.Content) + perTurnOverhead
	}
	return total
}

func (c *Counter) text(s string) int {
	ids, _, err := c.enc.Encode(s)
	if err != nil {
		return 0
	}
	return len(ids)
}
