package pp3

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/aipp3/internal/edits"
)

const baseProfile = "[Version]\nAppVersion=5.8\n[Exposure]\nAuto=false\nClip=0.02\n[White Balance]\nTemperature=6500"

func TestMerge_PreservesOriginalOrder(t *testing.T) {
	f := Filter(baseProfile, []string{"White Balance", "Exposure"})
	edited := "[Exposure]\nAuto=true\nClip=0.02\n[White Balance]\nTemperature=5200"

	got := Merge(f.Names(), edited, f.Included, f.Excluded)
	want := "[Version]\nAppVersion=5.8\n[Exposure]\nAuto=true\nClip=0.02\n[White Balance]\nTemperature=5200"
	assert.Equal(t, want, got)
}

func TestMerge_FallsBackToIncluded(t *testing.T) {
	f := Filter(baseProfile, []string{"Exposure", "White Balance"})
	// The edited text lost the White Balance section entirely.
	edited := "[Exposure]\nAuto=true\nClip=0.02"

	got := Merge(f.Names(), edited, f.Included, f.Excluded)
	want := "[Version]\nAppVersion=5.8\n[Exposure]\nAuto=true\nClip=0.02\n[White Balance]\nTemperature=6500"
	assert.Equal(t, want, got)
}

func TestMerge_UnresolvedNameLeavesEmptyLine(t *testing.T) {
	got := Merge([]string{"A", "Missing", "B"}, "", []string{"[A]\na=1"}, []string{"[B]\nb=2"})
	assert.Equal(t, "[A]\na=1\n\n[B]\nb=2", got)
}

func TestMerge_DuplicateNamesResolveToFirst(t *testing.T) {
	f := Filter("[A]\nx=1\n[A]\nx=2", nil)
	got := Merge(f.Names(), "", f.Included, f.Excluded)
	assert.Equal(t, "[A]\nx=1\n[A]\nx=1", got)
}

func TestMerge_ExactNameMatch(t *testing.T) {
	// A header without its closing bracket still resolves by name.
	f := Filter("[Exposure\nAuto=false\n[Sharpening]\nEnabled=true", []string{"Sharpening"})
	got := Merge(f.Names(), "[Sharpening]\nEnabled=false", f.Included, f.Excluded)
	assert.Equal(t, "[Exposure\nAuto=false\n[Sharpening]\nEnabled=false", got)
}

func TestMerge_EmptyOrder(t *testing.T) {
	assert.Equal(t, "", Merge(nil, "[A]\na=1", nil, nil))
}

func TestMergeEdits(t *testing.T) {
	f := Filter(baseProfile, []string{"Exposure"})
	blocks := []edits.Block{
		{Search: "[Exposure]\nAuto=false", Replace: "[Exposure]\nAuto=true"},
		{Search: "Clip=0.99", Replace: "Clip=0.10"}, // not present: no-op
	}

	got, applied := MergeEdits(f, blocks)
	assert.Equal(t, 1, applied)
	assert.Equal(t, "[Version]\nAppVersion=5.8\n[Exposure]\nAuto=true\nClip=0.02\n[White Balance]\nTemperature=6500", got)
}

func TestMergeEdits_TrimsBlockText(t *testing.T) {
	f := Filter(baseProfile, []string{"Exposure"})
	blocks := []edits.Block{
		{Search: "\nClip=0.02\n", Replace: "  Clip=0.15\n"},
	}

	got, applied := MergeEdits(f, blocks)
	assert.Equal(t, 1, applied)
	assert.Contains(t, got, "[Exposure]\nAuto=false\nClip=0.15\n[White Balance]")
}

func TestMergeEdits_ExcludedSectionsUntouched(t *testing.T) {
	f := Filter(baseProfile, []string{"Exposure"})
	// The search text lives in an excluded section and must not be edited.
	blocks := []edits.Block{{Search: "Temperature=6500", Replace: "Temperature=3000"}}

	got, applied := MergeEdits(f, blocks)
	assert.Equal(t, 0, applied)
	assert.Equal(t, baseProfile, got)
}
