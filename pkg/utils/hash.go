package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"hash/crc32"
)

// StableID derives a deterministic 32 hex char id from a namespace prefix and a source key
func StableID(prefix string, src string) string {
	sum := sha1.Sum([]byte(prefix + ":" + src))
	return hex.EncodeToString(sum[:])[:32]
}

// ShortTag is the first six hex chars of sha1(secret:value)
func ShortTag(secret string, value string) string {
	sum := sha1.Sum([]byte(secret + ":" + value))
	return hex.EncodeToString(sum[:])[:6]
}

// ShardIndex maps a key onto one of n shards
func ShardIndex(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(crc32.ChecksumIEEE([]byte(key)) % uint32(n))
}
