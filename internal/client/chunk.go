package client

import "unicode/utf8"

// SplitChunks cuts p into pieces of at most size bytes without splitting a
// UTF-8 sequence. Invalid bytes are treated as single-byte runes.
func SplitChunks(p []byte, size int) [][]byte {
	if len(p) == 0 {
		return nil
	}
	if size < utf8.UTFMax {
		size = utf8.UTFMax
	}
	var chunks [][]byte
	for len(p) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(p[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, p[:cut])
		p = p[cut:]
	}
	return append(chunks, p)
}
