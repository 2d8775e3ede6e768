// Package edits parses SEARCH/REPLACE edit blocks out of free-form model
// output and applies them to profile text.
package edits

import (
	"errors"
	"fmt"
	"strings"
)

// Marker lines, matched as line prefixes.
const (
	SearchMarker  = "<<<<<<< SEARCH"
	DividerMarker = "======="
	ReplaceMarker = ">>>>>>> REPLACE"
)

var (
	// ErrNoEdits is returned by Validate when the response held no blocks.
	ErrNoEdits = errors.New("edits: no valid search/replace blocks found")
	// ErrInvalidBlock is returned by Validate for a block with an empty side.
	ErrInvalidBlock = errors.New("edits: invalid search/replace block format")
)

// Block is one edit instruction: replace Search with Replace.
type Block struct {
	Search  string
	Replace string
}

type state int

const (
	stateIdle state = iota
	stateSearch
	stateReplace
)

// Parse extracts every complete SEARCH / divider / REPLACE triple from text,
// in order of appearance. A new SEARCH marker abandons an open block; an
// unterminated trailing block is dropped. Blocks with an empty side are
// returned as parsed; use Validate to reject them.
func Parse(text string) []Block {
	var (
		blocks  []Block
		st      = stateIdle
		search  []string
		replace []string
	)

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, SearchMarker):
			st = stateSearch
			search, replace = nil, nil
		case strings.HasPrefix(line, DividerMarker):
			if st == stateSearch {
				st = stateReplace
			}
		case strings.HasPrefix(line, ReplaceMarker):
			if st == stateReplace {
				blocks = append(blocks, Block{
					Search:  strings.Join(search, "\n"),
					Replace: strings.Join(replace, "\n"),
				})
			}
			st = stateIdle
			search, replace = nil, nil
		default:
			switch st {
			case stateSearch:
				search = append(search, line)
			case stateReplace:
				replace = append(replace, line)
			}
		}
	}
	return blocks
}

// Validate rejects an empty block list and any block whose search or replace
// text is empty.
func Validate(blocks []Block) error {
	if len(blocks) == 0 {
		return ErrNoEdits
	}
	for i, b := range blocks {
		if b.Search == "" || b.Replace == "" {
			return fmt.Errorf("%w: block %d", ErrInvalidBlock, i+1)
		}
	}
	return nil
}

// Apply replaces, block by block, the first literal occurrence of the trimmed
// search text with the trimmed replace text. A search that is not found is a
// no-op. It returns the patched text and the number of blocks that matched.
func Apply(text string, blocks []Block) (string, int) {
	applied := 0
	for _, b := range blocks {
		search := strings.TrimSpace(b.Search)
		if search == "" || !strings.Contains(text, search) {
			continue
		}
		text = strings.Replace(text, search, strings.TrimSpace(b.Replace), 1)
		applied++
	}
	return text, applied
}
