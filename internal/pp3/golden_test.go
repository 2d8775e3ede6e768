package pp3

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/aipp3/internal/edits"
)

const goldenDir = "../../testdata/golden"

func readGolden(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(goldenDir, name))
	require.NoError(t, err)
	return string(b)
}

// TestGolden_MergeReply runs a realistic model reply against a full
// RawTherapee profile. The [RAW] edit targets an excluded section and must
// not apply.
func TestGolden_MergeReply(t *testing.T) {
	base := readGolden(t, "base.pp3")
	reply := readGolden(t, "reply.txt")
	want := readGolden(t, "expected.pp3")

	f := Filter(base, []string{"Exposure", "White Balance", "Sharpening", "Vibrance"})
	require.Len(t, f.Included, 4)
	require.Len(t, f.Excluded, 3)

	blocks := edits.Parse(reply)
	require.NoError(t, edits.Validate(blocks))
	require.Len(t, blocks, 6)

	got, applied := MergeEdits(f, blocks)
	assert.Equal(t, 5, applied)
	assert.Equal(t, want, got)
	assert.Equal(t, f.Names(), Split(got).Names(), "section order is preserved")
}
