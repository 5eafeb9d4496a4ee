package pipeline

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointbatch/internal/cloud"
)

const sampleCalib = `P0: 1 0 0 0 0 1 0 0 0 0 1 0
Tr: 1 0 0 0.5 0 1 0 -0.2 0 0 1 1.5
`

func TestParseCalibration(t *testing.T) {
	calib, err := ParseCalibration(strings.NewReader(sampleCalib))
	require.NoError(t, err)
	require.Len(t, calib, 2)

	tr, ok := calib["Tr"]
	require.True(t, ok)
	x, y, z := tr.Apply(0, 0, 0)
	assert.Equal(t, 0.5, x)
	assert.Equal(t, -0.2, y)
	assert.Equal(t, 1.5, z)
}

func TestParseCalibration_Errors(t *testing.T) {
	cases := map[string]string{
		"no separator": "Tr 1 0 0 0 0 1 0 0 0 0 1 0\n",
		"short row":    "Tr: 1 0 0\n",
		"bad value":    "Tr: 1 0 0 x 0 1 0 0 0 0 1 0\n",
		"empty file":   "",
		"blank lines":  "\n\n\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCalibration(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestParsePoses(t *testing.T) {
	calib, err := ParseCalibration(strings.NewReader(sampleCalib))
	require.NoError(t, err)

	// One pose translating by (2, 0, 0) in the pose frame.
	poses, err := ParsePoses(strings.NewReader("1 0 0 2 0 1 0 0 0 0 1 0\n"), calib)
	require.NoError(t, err)
	require.Len(t, poses, 1)

	// Composition Tr⁻¹ · pose · Tr. For a pure translation pose and a pure
	// translation Tr the result is the pose translation itself.
	x, y, z := poses[0].Apply(1, 2, 3)
	assert.InDelta(t, 3.0, x, 1e-12)
	assert.InDelta(t, 2.0, y, 1e-12)
	assert.InDelta(t, 3.0, z, 1e-12)
}

func TestParsePoses_RebasesRotation(t *testing.T) {
	// Tr rotates 90 degrees about Z; the pose translates by (1, 0, 0).
	calibText := "Tr: 0 -1 0 0 1 0 0 0 0 0 1 0\n"
	calib, err := ParseCalibration(strings.NewReader(calibText))
	require.NoError(t, err)

	poses, err := ParsePoses(strings.NewReader("1 0 0 1 0 1 0 0 0 0 1 0\n"), calib)
	require.NoError(t, err)
	require.Len(t, poses, 1)

	// Tr⁻¹ maps the world translation (1, 0, 0) into the sensor frame,
	// where it points along -Y.
	x, y, z := poses[0].Apply(0, 0, 0)
	assert.InDelta(t, 0.0, x, 1e-12)
	assert.InDelta(t, -1.0, y, 1e-12)
	assert.InDelta(t, 0.0, z, 1e-12)
}

func TestParsePoses_MissingTr(t *testing.T) {
	calib := map[string]cloud.Rigid{"P0": cloud.Identity}
	_, err := ParsePoses(strings.NewReader("1 0 0 0 0 1 0 0 0 0 1 0\n"), calib)
	assert.Error(t, err)
}

func TestParseTransformRow_BottomRow(t *testing.T) {
	tr, err := parseTransformRow("1 0 0 0 0 1 0 0 0 0 1 0")
	require.NoError(t, err)
	assert.True(t, math.Abs(tr[15]-1) < 1e-15)
	assert.Equal(t, cloud.Identity, tr)
}
