package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "1.2.3"

	assert.Contains(t, String(), "1.2.3 (commit: ")
	assert.Equal(t, "cropocr/1.2.3", UserAgent())
}
