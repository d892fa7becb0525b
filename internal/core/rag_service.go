package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gwi.com/product-recommender/internal/store"
	"gwi.com/product-recommender/internal/utils"
)

// Document is one retrieved piece of product evidence.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

// Retriever returns the k documents most relevant to query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

type ChunkSource interface {
	GetAllProductChunks() ([]store.ProductChunk, error)
}

// RAGService is a brute-force cosine similarity index over the product
// chunks, cached in memory.
type RAGService struct {
	source    ChunkSource
	embedder  Embedder
	threshold float32
	log       *zap.Logger

	mu     sync.RWMutex
	chunks []store.ProductChunk
}

func NewRAGService(source ChunkSource, embedder Embedder, threshold float32, log *zap.Logger) (*RAGService, error) {
	s := &RAGService{
		source:    source,
		embedder:  embedder,
		threshold: threshold,
		log:       log,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload refreshes the in-memory chunk cache from the source.
func (s *RAGService) Reload() error {
	chunks, err := s.source.GetAllProductChunks()
	if err != nil {
		return fmt.Errorf("failed to load product chunks: %w", err)
	}
	if len(chunks) == 0 {
		s.log.Warn("retriever has no product chunks; run ingestion first")
	} else {
		s.log.Info("retriever loaded product chunks", zap.Int("chunks", len(chunks)))
	}

	s.mu.Lock()
	s.chunks = chunks
	s.mu.Unlock()
	return nil
}

func (s *RAGService) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *RAGService) Search(ctx context.Context, query string, k int) ([]Document, error) {
	s.mu.RLock()
	chunks := s.chunks
	s.mu.RUnlock()

	if len(chunks) == 0 || k <= 0 {
		return []Document{}, nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}

	scored := make([]Document, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		similarity, err := utils.CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			s.log.Debug("skipping chunk", zap.Int64("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		if similarity < s.threshold {
			continue
		}
		scored = append(scored, Document{
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
			Score:    similarity,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	s.log.Debug("retrieved documents", zap.Int("count", len(scored)), zap.String("query", query))
	return scored, nil
}
