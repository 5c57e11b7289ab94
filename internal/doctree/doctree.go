package doctree

// Document is a PDF reduced to its ordered page texts.
type Document struct {
	Path  string  // Source file path
	Pages []*Page // Pages in document order
}

// Page holds the plain text of a single page.
type Page struct {
	Number int    // 1-based page number
	Text   string // Extracted text ("" for image-only pages)
}

// Chunk is a token-bounded slice of the document text, ready for point extraction.
type Chunk struct {
	Index  int    // Sequence number within the document
	Text   string // Decoded chunk text
	Tokens []int  // Token ids this chunk covers, in order
}
