package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tracelens/playground/internal/domain"
)

// OpenAICounter provides exact token counts for OpenAI-family models using
// tiktoken encodings.
type OpenAICounter struct {
	cacheMu    sync.RWMutex
	codecCache map[tokenizer.Encoding]tokenizer.Codec
}

// NewOpenAICounter creates a new OpenAI token counter.
func NewOpenAICounter() *OpenAICounter {
	return &OpenAICounter{codecCache: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// SupportsModel returns true for OpenAI model-name families.
func (c *OpenAICounter) SupportsModel(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"gpt-", "o1", "o3", "o4", "text-embedding", "text-davinci"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func (c *OpenAICounter) getCodec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding maps model-name families to tiktoken encodings.
// O200kBase covers gpt-4o and the o-series; Cl100kBase covers gpt-4 and
// gpt-3.5; P50kBase covers the legacy davinci completions models.
func modelToEncoding(model string) tokenizer.Encoding {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(m, "gpt-4"), strings.HasPrefix(m, "gpt-3.5"), strings.HasPrefix(m, "text-embedding"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(m, "text-davinci"):
		return tokenizer.P50kBase
	default:
		return tokenizer.O200kBase
	}
}

// CountInstance counts tokens across the template messages and tool
// definitions. Message overhead follows OpenAI's accounting: 3 tokens per
// message, 1 per role, plus 3 for assistant priming at the end.
func (c *OpenAICounter) CountInstance(inst *domain.PromptInstance) (Count, error) {
	codec, err := c.getCodec(inst.Model.ModelName)
	if err != nil {
		return Count{}, err
	}

	const (
		tokensPerMessage = 3
		tokensPerRole    = 1
	)

	total := 0
	for _, msg := range inst.Template.Messages {
		total += tokensPerMessage + tokensPerRole
		ids, _, _ := codec.Encode(msg.Content)
		total += len(ids)
		for _, tc := range msg.ToolCalls {
			ids, _, _ := codec.Encode(string(tc.Payload))
			total += len(ids) + 3
		}
	}

	for _, tool := range inst.Tools {
		ids, _, _ := codec.Encode(string(tool.Definition))
		total += len(ids) + 7
	}

	total += 3 // assistant priming

	return Count{Tokens: total}, nil
}
