package recognize

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Charset maps model output indices to text tokens. Index 0 is reserved for
// the CTC blank; dictionary tokens start at index 1.
type Charset struct {
	tokens []string
}

// LoadCharset loads a dictionary file where each non-empty line is one
// token. A UTF-8 BOM on the first line is removed; interior whitespace is
// preserved so a bare space line can serve as the space token.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("dictionary %s contains no tokens", path)
	}
	return &Charset{tokens: tokens}, nil
}

// NewCharset builds a charset directly from tokens, mainly for tests.
func NewCharset(tokens []string) *Charset {
	return &Charset{tokens: tokens}
}

// Size returns the number of model classes including the blank.
func (c *Charset) Size() int { return len(c.tokens) + 1 }

// Token returns the text for a model output index, or "" for the blank and
// out-of-range indices.
func (c *Charset) Token(idx int) string {
	if idx <= 0 || idx > len(c.tokens) {
		return ""
	}
	return c.tokens[idx-1]
}
