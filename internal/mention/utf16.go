package mention

import "unicode/utf8"

// Index maps UTF-16 code-unit positions of a string to byte positions. Bot API
// entity offsets count UTF-16 units, so slicing the Go string with them
// directly breaks on anything outside ASCII.
type Index struct {
	text string
	// byteAt[u] is the byte offset where code unit u starts, or -1 when u
	// falls on the low half of a surrogate pair. len(byteAt) == units+1.
	byteAt []int
}

func NewIndex(text string) *Index {
	byteAt := make([]int, 0, len(text)+1)
	for i, r := range text {
		byteAt = append(byteAt, i)
		if utf16Len(r) == 2 {
			byteAt = append(byteAt, -1)
		}
	}
	byteAt = append(byteAt, len(text))
	return &Index{text: text, byteAt: byteAt}
}

func utf16Len(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

// Len is the text length in UTF-16 code units.
func (x *Index) Len() int {
	return len(x.byteAt) - 1
}

// ByteOffset converts a code-unit offset to a byte offset. It fails when the
// offset is out of range or splits a surrogate pair.
func (x *Index) ByteOffset(unit int) (int, bool) {
	if unit < 0 || unit >= len(x.byteAt) {
		return 0, false
	}
	b := x.byteAt[unit]
	if b < 0 {
		return 0, false
	}
	return b, true
}

// Slice returns the text covered by [offset, offset+length) in code units.
func (x *Index) Slice(offset, length int) (string, bool) {
	if length < 0 {
		return "", false
	}
	start, ok := x.ByteOffset(offset)
	if !ok {
		return "", false
	}
	end, ok := x.ByteOffset(offset + length)
	if !ok {
		return "", false
	}
	return x.text[start:end], true
}

// From returns the text from a code-unit offset to the end.
func (x *Index) From(offset int) (string, bool) {
	start, ok := x.ByteOffset(offset)
	if !ok {
		return "", false
	}
	return x.text[start:], true
}
