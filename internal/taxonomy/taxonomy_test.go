package taxonomy

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
labels:
  0: "void"
  10: "car"
  40: "road"
  44: "parking"
learning_map:
  0: 0
  10: 1
  40: 2
  44: 2
learning_map_inv:
  0: 0
  1: 10
  2: 40
ignored: [0]
`

func TestParse(t *testing.T) {
	tax, err := Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 1, 2}, tax.LabelValues())
	assert.Equal(t, []int32{1, 2}, tax.UsedLabelValues())
	assert.True(t, tax.IsIgnored(0))
	assert.False(t, tax.IsIgnored(1))
	assert.Equal(t, "car", tax.Name(1))
	assert.Equal(t, "road", tax.Name(2))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("labels: {0: void}"))
	assert.Error(t, err, "missing learning_map must fail")

	_, err = Parse(strings.NewReader("learning_map: {0: 0}\nignored: [9]"))
	assert.Error(t, err, "ignored label outside the learned set must fail")

	_, err = Parse(strings.NewReader("not: [valid, taxonomy"))
	assert.Error(t, err)
}

func TestRemap(t *testing.T) {
	tax, err := Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	got := tax.Remap([]int32{0, 10, 40, 44, 10})
	if diff := cmp.Diff([]int32{0, 1, 2, 2, 1}, got); diff != "" {
		t.Errorf("remap (-want +got):\n%s", diff)
	}

	// Raw ids outside the table map to 0.
	got = tax.Remap([]int32{99, -3})
	if diff := cmp.Diff([]int32{0, 0}, got); diff != "" {
		t.Errorf("out-of-table remap (-want +got):\n%s", diff)
	}
}
