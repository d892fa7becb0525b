package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Embedder turns text into an embedding vector.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// ParseProductTable reads a markdown table. The header row names the
// columns; the first column holds the product title. Rows whose title cell
// is empty are skipped.
func ParseProductTable(r io.Reader) ([]ProductRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var header []string
	var rows []ProductRow
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			continue
		}
		cells := splitRow(line)

		if header == nil {
			header = cells
			continue
		}
		if isSeparatorRow(cells) {
			continue
		}
		if len(cells) == 0 || cells[0] == "" {
			continue
		}

		row := ProductRow{Title: cells[0]}
		for i := 1; i < len(cells) && i < len(header); i++ {
			if cells[i] == "" {
				continue
			}
			row.Fields = append(row.Fields, Field{Name: header[i], Value: cells[i]})
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product table: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("no markdown table header found")
	}
	return rows, nil
}

func splitRow(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

// ToChunk renders a row as retrievable text. Metadata keeps every column
// under its header name plus product_name.
func (r ProductRow) ToChunk() ProductChunk {
	var b strings.Builder
	b.WriteString("Product: ")
	b.WriteString(r.Title)
	metadata := map[string]string{"product_name": r.Title}
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
		metadata[f.Name] = f.Value
	}
	return ProductChunk{Content: b.String(), Metadata: metadata}
}

// IngestProductsFromFile replaces the product index with the rows of a
// markdown table file.
func (s *SQLiteStore) IngestProductsFromFile(ctx context.Context, filePath string, embed Embedder, interval time.Duration) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open data file %s: %w", filePath, err)
	}
	defer f.Close()

	rows, err := ParseProductTable(f)
	if err != nil {
		return 0, err
	}
	return s.IngestProducts(ctx, rows, embed, interval)
}

// IngestProducts embeds and stores rows, pausing interval between embedding
// calls to stay under the provider's rate limit. Rows that fail to embed are
// skipped.
func (s *SQLiteStore) IngestProducts(ctx context.Context, rows []ProductRow, embed Embedder, interval time.Duration) (int, error) {
	if len(rows) == 0 {
		s.log.Warn("no product rows to ingest")
		return 0, nil
	}

	if err := s.ClearProductChunks(); err != nil {
		return 0, fmt.Errorf("failed to clear existing product chunks: %w", err)
	}

	s.log.Info("embedding product rows", zap.Int("rows", len(rows)))

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	count := 0
	for i, row := range rows {
		if tick != nil {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			case <-tick:
			}
		}

		chunk := row.ToChunk()
		embedding, err := embed(ctx, chunk.Content)
		if err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			s.log.Warn("failed to embed product row, skipping",
				zap.Int("row", i+1), zap.String("product", row.Title), zap.Error(err))
			continue
		}
		chunk.Embedding = embedding

		if err := s.CreateProductChunk(&chunk); err != nil {
			s.log.Warn("failed to store product chunk, skipping", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		count++
		if count%10 == 0 || count == len(rows) {
			s.log.Info("ingest progress", zap.Int("done", count), zap.Int("total", len(rows)))
		}
	}
	return count, nil
}
