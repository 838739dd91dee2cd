package uuid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRunKeyUniqueV7(t *testing.T) {
	t.Parallel()

	gen := New()
	first, err := gen.NewRunKey()
	require.NoError(t, err)
	second, err := gen.NewRunKey()
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.EqualValues(t, 7, first.Version())
}
