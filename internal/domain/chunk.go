package domain

import "strconv"

// Chunk is a fixed-size run of sentences from one source document, the unit
// of retrieval. Chunks are immutable once created.
type Chunk struct {
	ID             string
	SourceDocument string
	Offset         int
	Text           string
}

// ChunkID builds the corpus-unique identifier "{document}_{offset}".
func ChunkID(document string, offset int) string {
	return document + "_" + strconv.Itoa(offset)
}

// Corpus is an ordered, id-indexed collection of chunks.
type Corpus struct {
	chunks []Chunk
	byID   map[string]int
}

// NewCorpus builds a corpus from chunks in ingestion order.
// Duplicate ids are rejected.
func NewCorpus(chunks []Chunk) (*Corpus, error) {
	c := &Corpus{
		chunks: make([]Chunk, 0, len(chunks)),
		byID:   make(map[string]int, len(chunks)),
	}
	for _, ch := range chunks {
		if _, ok := c.byID[ch.ID]; ok {
			return nil, NewDomainErrorWithCause(ErrCodeValidation, "duplicate chunk id "+ch.ID, ErrDuplicateChunkID)
		}
		c.byID[ch.ID] = len(c.chunks)
		c.chunks = append(c.chunks, ch)
	}
	return c, nil
}

// Len returns the number of chunks.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.chunks)
}

// Chunks returns the chunks in ingestion order. The slice must not be modified.
func (c *Corpus) Chunks() []Chunk {
	if c == nil {
		return nil
	}
	return c.chunks
}

// Get returns the chunk with the given id.
func (c *Corpus) Get(id string) (Chunk, bool) {
	if c == nil {
		return Chunk{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Chunk{}, false
	}
	return c.chunks[i], true
}

// IDs returns chunk ids in ingestion order.
func (c *Corpus) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.chunks))
	for i, ch := range c.chunks {
		ids[i] = ch.ID
	}
	return ids
}
