package fat32

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// P6: two names sharing a prefix get ~N aliases whose digits differ.
func TestBuildShortAliasCollisionDigits(t *testing.T) {
	base, ext := splitBaseExt([]byte("longname1.txt"))
	a1 := buildShortAlias(base, ext, 1)
	a2 := buildShortAlias(base, ext, 2)
	require.Equal(t, "LONGNA~1TXT", string(a1[:]))
	require.Equal(t, "LONGNA~2TXT", string(a2[:]))
}

// P5: the LFN checksum equals the rot-right-8 accumulation over the
// 11-byte short alias.
func TestSFNChecksumMatchesManualAccumulation(t *testing.T) {
	alias := buildShortAlias([]byte("readme"), []byte("md"), 1)
	var want uint8
	for _, b := range alias {
		want = rotRight8(want) + b
	}
	require.Equal(t, want, sfnChecksum(alias))
}

func TestClassifyNeedsLFN(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"readme.txt", false},
		{"README.TXT", false},
		{"ReadMe.txt", true},      // mixed-case base
		{"readme.Txt", true},      // mixed-case ext
		{"averyveryverylong.txt", true}, // base > 8
		{"readme.text", true},     // ext > 3
	}
	for _, c := range cases {
		nb := []byte(c.name)
		s := classify(nb)
		require.Equal(t, c.want, s.needsLFN(len(nb)), c.name)
	}
}

func TestLFNSlotCountAndOrdinals(t *testing.T) {
	name := []byte("A Very Long File Name.text")
	entries := buildLFNEntries(name, 0x42)
	require.Len(t, entries, lfnSlotsFor(len(encodeNameUnits(name))))
	// First disk-order slot carries the highest ordinal with 0x40 set.
	require.NotZero(t, entries[0].Ord&0x40)
	for _, e := range entries {
		require.Equal(t, uint8(0x42), e.Chksum)
	}
}
