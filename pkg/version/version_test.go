package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemver(t *testing.T) {
	defer func(v string) { PolycheckVersion = v }(PolycheckVersion)

	PolycheckVersion = "v1.4.2"
	v, err := Semver()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Major)
	assert.Equal(t, uint64(4), v.Minor)
	assert.Contains(t, String(), "v1.4.2")

	PolycheckVersion = "unknown"
	_, err = Semver()
	assert.Error(t, err)
}
