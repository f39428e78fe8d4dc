package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"400", "400"},
		{"5000", "5,000"},
		{"12345.5", "12,345.50"},
		{"1234567.891", "1,234,567.89"},
		{"-2500", "-2,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.4", "0.4"},
		{"0.55", "0.55"},
		{"0.123456", "0.1235"},
		{"1", "1"},
		{"0", "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestShortWallet(t *testing.T) {
	assert.Equal(t, "0x1234…abcd", ShortWallet("0x1234567890abcdef1234567890abcdef1234abcd"))
	assert.Equal(t, "0xabc", ShortWallet("0xabc"))
	assert.Equal(t, "whale.eth", ShortWallet("whale.eth"))
}

func TestStableID(t *testing.T) {
	id := StableID("wt", "trade-1")
	assert.Len(t, id, 32)
	assert.Equal(t, id, StableID("wt", "trade-1"))
	assert.NotEqual(t, id, StableID("al", "trade-1"))
	// first 32 hex chars of sha1("wt:abc")
	assert.Equal(t, "e17cea39ba826d5492e8f0d020594c6a", StableID("wt", "abc"))
}

func TestShortTag(t *testing.T) {
	tag := ShortTag("secret", "12345")
	assert.Len(t, tag, 6)
	assert.Equal(t, tag, ShortTag("secret", "12345"))
	assert.NotEqual(t, tag, ShortTag("other", "12345"))
}

func TestShardIndex(t *testing.T) {
	for _, key := range []string{"a", "0xwallet|market", ""} {
		idx := ShardIndex(key, 16)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 16)
		assert.Equal(t, idx, ShardIndex(key, 16))
	}
	assert.Equal(t, 0, ShardIndex("anything", 1))
}
