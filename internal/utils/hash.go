package utils

import (
	"hash/fnv"
	"unicode/utf16"
)

func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// CharCodeSum adds up the UTF-16 code units of s, so non-BMP runes count as
// their two surrogate halves.
func CharCodeSum(s string) int64 {
	var sum int64
	for _, u := range utf16.Encode([]rune(s)) {
		sum += int64(u)
	}
	return sum
}
