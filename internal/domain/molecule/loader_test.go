package molecule_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/turtacn/molregistry/internal/domain/molecule"
)

func TestLoadBatch_Success(t *testing.T) {
	t.Parallel()

	r := molecule.NewRegistry()
	_, err := r.Add("existing", "C")
	require.NoError(t, err)

	out, err := r.LoadBatch([]string{
		"mol1:CCO",
		"",
		"   ",
		"  mol2 :  CC(=O)Oc1ccccc1C(=O)O  ",
		"existing:CCN",
		"mol1:CCC",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Added)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, []string{"mol1", "mol2"}, out.Identifiers)

	got, err := r.Get("mol1")
	require.NoError(t, err)
	assert.Equal(t, "CCO", got.SMILES, "first occurrence wins")

	got, err = r.Get("mol2")
	require.NoError(t, err)
	assert.Equal(t, "CC(=O)Oc1ccccc1C(=O)O", got.SMILES, "whitespace is trimmed")

	got, err = r.Get("existing")
	require.NoError(t, err)
	assert.Equal(t, "C", got.SMILES)

	assert.Equal(t, []string{"existing", "mol1", "mol2"}, identifiers(r.List()))
}

func TestLoadBatch_ParseErrorLeavesRegistryUnchanged(t *testing.T) {
	t.Parallel()

	r := molecule.NewRegistry()
	_, err := r.LoadBatch([]string{"a:CCO", "", "b:not(unbalanced"})
	require.Error(t, err)

	var fe *molecule.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Line)
	assert.True(t, errors.Is(err, molecule.ErrInvalidFileFormat))

	var pe *molecule.ParseError
	require.True(t, errors.As(err, &pe), "parse error stays reachable")
	assert.Equal(t, 2, pe.Position)

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, uint64(0), r.Version())
}

func TestLoadBatch_FormatErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		lines []string
		line  int
	}{
		{"missing separator", []string{"a:C", "noseparator"}, 2},
		{"two separators", []string{"a:b:C"}, 1},
		{"empty identifier", []string{"", " :CCO"}, 2},
		{"empty notation", []string{"a:"}, 1},
		{"invalid utf8", []string{"a:C", "b:\xff"}, 2},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := molecule.NewRegistry()
			_, err := r.LoadBatch(tc.lines)
			var fe *molecule.FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tc.line, fe.Line)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestLoadBatch_NothingNew(t *testing.T) {
	t.Parallel()

	r := molecule.NewRegistry()
	_, err := r.Add("a", "C")
	require.NoError(t, err)
	version := r.Version()

	out, err := r.LoadBatch([]string{"a:CC", "", "a:CCC"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Added)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, version, r.Version())
}

func TestFormatError_Message(t *testing.T) {
	t.Parallel()

	err := &molecule.FormatError{Line: 4, Message: "each line must be 'identifier:SMILES'"}
	assert.Equal(t, "line 4: each line must be 'identifier:SMILES'", err.Error())
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	lines, err := molecule.ReadLines(strings.NewReader("a:CCO\r\n\r\nb:CC\nc:C"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a:CCO", "", "b:CC", "c:C"}, lines)

	lines, err = molecule.ReadLines(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReadLines_LineTooLong(t *testing.T) {
	t.Parallel()

	_, err := molecule.ReadLines(strings.NewReader(strings.Repeat("C", 70*1024)))
	assert.Error(t, err)
}

func TestProperty_BatchWithOneBadLineIsAtomic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := molecule.NewRegistry()
		seed := rapid.IntRange(0, 3).Draw(t, "seed")
		for i := 0; i < seed; i++ {
			if _, err := r.Add(fmt.Sprintf("seed%d", i), "CC"); err != nil {
				t.Fatal(err)
			}
		}
		before, version := r.Snapshot()

		n := rapid.IntRange(0, 10).Draw(t, "valid")
		lines := make([]string, 0, n+1)
		for i := 0; i < n; i++ {
			lines = append(lines, fmt.Sprintf("m%d:%s", i, rapid.SampledFrom(sampleSMILES).Draw(t, "smiles")))
		}
		bad := rapid.SampledFrom([]string{"broken", "x:C(", "y:C1CC", "a:b:c", "z:Xx"}).Draw(t, "bad")
		at := rapid.IntRange(0, len(lines)).Draw(t, "at")
		lines = append(lines[:at], append([]string{bad}, lines[at:]...)...)

		if _, err := r.LoadBatch(lines); err == nil {
			t.Fatalf("expected error for line %q", bad)
		}
		after, afterVersion := r.Snapshot()
		if afterVersion != version || len(after) != len(before) {
			t.Fatalf("registry changed: %d -> %d entries", len(before), len(after))
		}
	})
}
