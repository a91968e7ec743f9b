// Package contracts defines the boundary with the stages that run before
// factgate: text extraction, sentence segmentation and embedding. factgate
// does not implement them; it consumes their records and can check that a
// segmenter kept its offset promise.
package contracts

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Image is one picture found during extraction.
type Image struct {
	SHA1      string    `json:"sha1"`
	Page      *int      `json:"page,omitempty"`
	BBox      []float64 `json:"bbox,omitempty"`
	SavedPath string    `json:"saved_path,omitempty"`
	OCRText   string    `json:"ocr_text,omitempty"`
}

// ExtractedDoc is the extractor's output. Non-paginated sources have a
// single page.
type ExtractedDoc struct {
	DocID      string   `json:"doc_id"`
	SourcePath string   `json:"source_path"`
	Pages      []string `json:"pages"`
	Images     []Image  `json:"images"`
}

// Sentence is one segmenter record. CharStart and CharEnd index characters
// (not bytes) of the page text, and Text must equal that slice exactly.
type Sentence struct {
	DocID     string `json:"doc_id"`
	SentID    string `json:"sent_id"`
	Page      *int   `json:"page"`
	Text      string `json:"text"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// Chunk groups consecutive sentences for embedding.
type Chunk struct {
	DocID       string   `json:"doc_id"`
	ChunkID     string   `json:"chunk_id"`
	Text        string   `json:"text"`
	SentenceIDs []string `json:"sentence_ids"`
	PageStart   *int     `json:"page_start"`
	PageEnd     *int     `json:"page_end"`
}

// Extractor turns a source file into page text and image metadata.
type Extractor interface {
	Extract(ctx context.Context, path string) (*ExtractedDoc, error)
}

// Segmenter splits a document into sentences whose offsets slice back into
// the page text.
type Segmenter interface {
	Segment(ctx context.Context, doc *ExtractedDoc) ([]Sentence, error)
}

// Embedder maps texts to vectors, one per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenCounter is implemented by embedders that can size their input.
type TokenCounter interface {
	TokenCount(text string) int
}

func sha16(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// SentenceID derives the id a segmenter assigns: the first 16 hex chars of
// sha1("doc_id|page|start|end"), with an empty page for unpaginated text.
func SentenceID(docID string, page *int, start, end int) string {
	p := ""
	if page != nil {
		p = strconv.Itoa(*page)
	}
	return sha16(fmt.Sprintf("%s|%s|%d|%d", docID, p, start, end))
}

// ChunkID derives a chunk id from its first and last sentence ids.
func ChunkID(docID, firstSentID, lastSentID string) string {
	return sha16(docID + "|" + firstSentID + "|" + lastSentID)
}
