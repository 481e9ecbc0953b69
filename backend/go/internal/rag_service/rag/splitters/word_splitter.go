package splitters

import (
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"fmt"
	"strings"
)

var _ interfaces.Chunker = (*WordSplitter)(nil)

// WordSplitter cuts text into windows of ChunkSize whitespace-separated words,
// each window starting ChunkSize-ChunkOverlap words after the previous one.
type WordSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewWordSplitter validates the window configuration.
func NewWordSplitter(chunkSize, chunkOverlap int) (*WordSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ragerr.ErrConfiguration, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ragerr.ErrConfiguration, chunkSize, chunkOverlap)
	}
	return &WordSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// Chunk returns the windows in document order. The last window may be short.
// Empty or whitespace-only input yields an empty, non-nil slice.
func (s *WordSplitter) Chunk(text string) []string {
	words := strings.Fields(text)
	chunks := make([]string, 0, s.estimate(len(words)))
	if len(words) == 0 {
		return chunks
	}

	step := s.ChunkSize - s.ChunkOverlap
	for start := 0; start < len(words); start += step {
		end := start + s.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func (s *WordSplitter) estimate(n int) int {
	if n <= s.ChunkSize {
		return 1
	}
	step := s.ChunkSize - s.ChunkOverlap
	return (n-s.ChunkSize+step-1)/step + 1
}
