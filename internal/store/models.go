package store

import "time"

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

// ProductChunk is one embedded product document of the retrieval index.
type ProductChunk struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"-"`
}

// ProductRow is one parsed row of the product data table.
type ProductRow struct {
	Title  string
	Fields []Field
}

type Field struct {
	Name  string
	Value string
}
