package assoc

import (
	"github.com/pkoukk/tiktoken-go"
)

// truncateTokens caps text at maxTokens using the o200k_base encoding. If the
// encoding cannot be loaded the text is passed through unchanged; the model
// will then truncate on its own terms.
func truncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
