package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/logger"
)

// DefaultAskTopK is how many chunks ground an answer when the caller does
// not say.
const DefaultAskTopK = 5

// askSystemPrompt instructs the model to stay inside the retrieved
// excerpts instead of free-wheeling.
const askSystemPrompt = `You answer questions using only the numbered document excerpts provided.
If the excerpts do not contain the answer, say so plainly.
Cite excerpts by their number, like [1] or [2], where they support a statement.`

// AskService answers questions grounded on the index: retrieve the most
// relevant chunks, hand them to the LLM as context, return the answer
// together with its sources.
type AskService struct {
	searcher driving.Searcher
	llm      driven.LLMService
}

// Ensure AskService implements the interface.
var _ driving.Asker = (*AskService)(nil)

// NewAskService creates a new ask service. llm may be nil, in which case
// every Ask returns domain.ErrLLMUnavailable.
func NewAskService(searcher driving.Searcher, llm driven.LLMService) *AskService {
	return &AskService{
		searcher: searcher,
		llm:      llm,
	}
}

// Ask retrieves context for the question and synthesises an answer.
func (s *AskService) Ask(ctx context.Context, question string, topK int) (*domain.Answer, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("%w: no LLM configured", domain.ErrLLMUnavailable)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = DefaultAskTopK
	}

	sources, err := s.searcher.Search(ctx, question, domain.SearchOptions{Limit: topK})
	if err != nil {
		return nil, err
	}

	prompt := buildAskPrompt(question, sources)
	text, err := s.llm.Complete(ctx, askSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("completing answer: %w", err)
	}

	logger.Debug("Ask %q answered from %d source(s)", question, len(sources))
	return &domain.Answer{
		Text:    strings.TrimSpace(text),
		Model:   s.llm.ModelName(),
		Sources: sources,
	}, nil
}

// buildAskPrompt assembles the numbered context block and the question.
// With no sources the model is told the index had nothing, so it can say
// so instead of inventing an answer.
func buildAskPrompt(question string, sources []domain.SearchResult) string {
	var b strings.Builder

	if len(sources) == 0 {
		b.WriteString("No relevant excerpts were found in the index.\n")
	} else {
		b.WriteString("Document excerpts:\n\n")
		for i, src := range sources {
			fmt.Fprintf(&b, "[%d] %s (%s/%s)\n%s\n\n",
				i+1, src.Chunk.Filename, src.Chunk.ProviderType, src.Chunk.ProviderName, src.Chunk.Text)
		}
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
