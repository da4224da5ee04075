package hash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pigeon/internal/utils/hash"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hash.Checksum(nil))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash.Checksum([]byte("hello")))
}
