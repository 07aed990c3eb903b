package words

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello, WORLD! hello"))
	assert.Equal(t, []string{"don't", "stop"}, Tokenize("don't 'stop'"))
	assert.Equal(t, []string{"café", "42"}, Tokenize("Café -- 42"))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestTokenizeDropsLongTokens(t *testing.T) {
	long := strings.Repeat("a", MaxWordLength+1)
	assert.Equal(t, []string{"short"}, Tokenize(long+" short"))
}

func TestTokenizePost(t *testing.T) {
	assert.Equal(t, []string{"lost", "cat", "near", "the", "campanile"},
		TokenizePost("Lost cat", "near the campanile, cat"))
}
