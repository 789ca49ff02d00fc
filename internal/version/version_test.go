package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestShortAndFull checks the formatting of version strings.
func TestShortAndFull(t *testing.T) {
	t.Parallel()

	require.Equal(t, Version, Short())

	full := Full()
	require.True(t, strings.Contains(full, Version))
	require.True(t, strings.Contains(full, Commit))
	require.True(t, strings.Contains(full, BuildTime))
}
