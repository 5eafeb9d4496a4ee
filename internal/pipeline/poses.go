package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/pointbatch/internal/cloud"
)

// ParseCalibration reads a calibration file of "key: v0 v1 ... v11" lines,
// each describing the top three rows of a 4x4 rigid transform (the last row
// is [0 0 0 1]).
func ParseCalibration(r io.Reader) (map[string]cloud.Rigid, error) {
	calib := make(map[string]cloud.Rigid)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, rest, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("calibration line %d has no key separator", lineNo)
		}
		t, err := parseTransformRow(rest)
		if err != nil {
			return nil, fmt.Errorf("calibration line %d (%s): %w", lineNo, strings.TrimSpace(key), err)
		}
		calib[strings.TrimSpace(key)] = t
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calibration: %w", err)
	}
	if len(calib) == 0 {
		return nil, fmt.Errorf("calibration file contains no transforms")
	}
	return calib, nil
}

// ParsePoses reads per-frame poses (12 floats per line) and rebases each
// into the sensor frame using the "Tr" calibration transform:
// Tr⁻¹ · pose · Tr.
func ParsePoses(r io.Reader, calib map[string]cloud.Rigid) ([]cloud.Rigid, error) {
	tr, ok := calib["Tr"]
	if !ok {
		return nil, fmt.Errorf("calibration is missing the Tr transform")
	}
	trInv := tr.Invert()

	var poses []cloud.Rigid
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pose, err := parseTransformRow(line)
		if err != nil {
			return nil, fmt.Errorf("pose line %d: %w", lineNo, err)
		}
		poses = append(poses, trInv.Mul(pose.Mul(tr)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read poses: %w", err)
	}
	return poses, nil
}

// parseTransformRow builds a Rigid from 12 whitespace-separated floats.
func parseTransformRow(s string) (cloud.Rigid, error) {
	fields := strings.Fields(s)
	if len(fields) != 12 {
		return cloud.Rigid{}, fmt.Errorf("expected 12 values, got %d", len(fields))
	}
	var t cloud.Rigid
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return cloud.Rigid{}, fmt.Errorf("bad value %q: %w", f, err)
		}
		t[i] = v
	}
	t[15] = 1
	return t, nil
}
