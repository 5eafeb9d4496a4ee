package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/pointbatch/internal/augment"
)

// Mode selects the split-specific behaviour of the pipeline.
type Mode string

const (
	// ModeTraining draws augmented training samples without reprojection.
	ModeTraining Mode = "training"
	// ModeValidation picks uniformly random centers and computes the
	// reprojection index against the full-resolution frame.
	ModeValidation Mode = "validation"
	// ModeTest behaves like validation but prefers centers that previous
	// inference passes have not yet predicted.
	ModeTest Mode = "test"
)

// ParseMode validates a split name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTraining, ModeValidation, ModeTest:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown split name %q (want training, validation or test)", s)
	}
}

// UnboundedRadius is the crop radius at or above which centering is skipped
// and whole frames pass through uncropped.
const UnboundedRadius = 50.0

// minViablePoints is the subsampled point count below which a sample is
// rejected as useless for training.
const minViablePoints = 10

// Config holds every tuning parameter of the batch pipeline.
type Config struct {
	// Spatial processing.
	InRadius  float64 // crop radius for training samples, meters
	ValRadius float64 // crop radius for validation/test samples
	VoxelSize float64 // first subsampling grid size, meters

	// Per-sample and per-batch budgets.
	MaxInPoints  int // per-sample point cap, training
	MaxValPoints int // per-sample point cap, validation/test
	BatchNum     int // target samples per batch, training
	ValBatchNum  int // target samples per batch, validation/test

	// Epoch sizing.
	EpochSteps     int     // batches per training epoch
	ValidationSize int     // batches per validation epoch
	PlanSlack      float64 // epoch plan oversizing to absorb rejections

	// Frame merging.
	FrameMerge int // frames merged per sample (1 = no merging)

	// Feature construction: 1 bias, 2 bias+height, 3 bias+height+intensity,
	// 4 bias+xyz, 5 bias+xyz+intensity.
	FeatureDim int

	// Augmentation.
	Augment augment.Config

	// RetryCap bounds consecutive soft rejections before batch construction
	// gives up with a hard error.
	RetryCap int

	// Seed makes sampling and augmentation reproducible.
	Seed uint64
}

// DefaultConfig mirrors the tuning used for LiDAR slam segmentation.
func DefaultConfig() Config {
	return Config{
		InRadius:       15.0,
		ValRadius:      15.0,
		VoxelSize:      0.1,
		MaxInPoints:    12000,
		MaxValPoints:   12000,
		BatchNum:       1,
		ValBatchNum:    1,
		EpochSteps:     600,
		ValidationSize: 100,
		PlanSlack:      1.1,
		FrameMerge:     1,
		FeatureDim:     1,
		Augment:        augment.DefaultConfig(),
		RetryCap:       100,
		Seed:           1,
	}
}

// Validate fails fast on configuration errors. hasIntensity reports whether
// the frame source provides an intensity channel; feature dimensions that
// need it are rejected when it is absent.
func (c Config) Validate(hasIntensity bool) error {
	switch c.FeatureDim {
	case 1, 2, 4:
	case 3, 5:
		if !hasIntensity {
			return fmt.Errorf("feature dimension %d needs an intensity channel the frame source does not provide", c.FeatureDim)
		}
	default:
		return fmt.Errorf("invalid feature dimension %d (accepted: 1, 2, 3, 4, 5)", c.FeatureDim)
	}
	if c.VoxelSize <= 0 {
		return fmt.Errorf("voxel size must be positive, got %f", c.VoxelSize)
	}
	if c.FrameMerge < 1 {
		return fmt.Errorf("frame merge count must be at least 1, got %d", c.FrameMerge)
	}
	if c.PlanSlack < 1.0 {
		return fmt.Errorf("plan slack must be >= 1.0, got %f", c.PlanSlack)
	}
	if c.RetryCap <= 0 {
		return fmt.Errorf("retry cap must be positive, got %d", c.RetryCap)
	}
	return nil
}

// Radius returns the crop radius for the given mode.
func (c Config) Radius(mode Mode) float64 {
	if mode == ModeTraining {
		return c.InRadius
	}
	return c.ValRadius
}

// MaxPoints returns the per-sample point cap for the given mode.
func (c Config) MaxPoints(mode Mode) int {
	if mode == ModeTraining {
		return c.MaxInPoints
	}
	return c.MaxValPoints
}

// Steps returns the logical step count per epoch for the given mode.
func (c Config) Steps(mode Mode) int {
	if mode == ModeTraining {
		return c.EpochSteps
	}
	return c.ValidationSize
}

// SamplesPerBatch returns the target batch size for the given mode.
func (c Config) SamplesPerBatch(mode Mode) int {
	if mode == ModeTraining {
		return c.BatchNum
	}
	return c.ValBatchNum
}

// PlanLength returns the epoch plan length for the given mode:
// ceil(steps x batch size x slack).
func (c Config) PlanLength(mode Mode) int {
	n := float64(c.Steps(mode)) * float64(c.SamplesPerBatch(mode)) * c.PlanSlack
	l := int(n)
	if float64(l) < n {
		l++
	}
	return l
}

// fileConfig is the JSON schema of a config file. Every field is optional;
// omitted fields keep their defaults, so partial configs are safe.
type fileConfig struct {
	InRadius       *float64 `json:"in_radius,omitempty"`
	ValRadius      *float64 `json:"val_radius,omitempty"`
	VoxelSize      *float64 `json:"voxel_size,omitempty"`
	MaxInPoints    *int     `json:"max_in_points,omitempty"`
	MaxValPoints   *int     `json:"max_val_points,omitempty"`
	BatchNum       *int     `json:"batch_num,omitempty"`
	ValBatchNum    *int     `json:"val_batch_num,omitempty"`
	EpochSteps     *int     `json:"epoch_steps,omitempty"`
	ValidationSize *int     `json:"validation_size,omitempty"`
	PlanSlack      *float64 `json:"plan_slack,omitempty"`
	FrameMerge     *int     `json:"frame_merge,omitempty"`
	FeatureDim     *int     `json:"feature_dim,omitempty"`
	RetryCap       *int     `json:"retry_cap,omitempty"`
	Seed           *uint64  `json:"seed,omitempty"`

	AugmentRotation    *string  `json:"augment_rotation,omitempty"`
	AugmentScaleMin    *float64 `json:"augment_scale_min,omitempty"`
	AugmentScaleMax    *float64 `json:"augment_scale_max,omitempty"`
	AugmentAnisotropic *bool    `json:"augment_anisotropic,omitempty"`
	AugmentSymmetries  *[3]bool `json:"augment_symmetries,omitempty"`
	AugmentNoise       *float64 `json:"augment_noise,omitempty"`
}

// LoadConfig reads a JSON config file and merges it over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}

	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setI := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&cfg.InRadius, fc.InRadius)
	setF(&cfg.ValRadius, fc.ValRadius)
	setF(&cfg.VoxelSize, fc.VoxelSize)
	setI(&cfg.MaxInPoints, fc.MaxInPoints)
	setI(&cfg.MaxValPoints, fc.MaxValPoints)
	setI(&cfg.BatchNum, fc.BatchNum)
	setI(&cfg.ValBatchNum, fc.ValBatchNum)
	setI(&cfg.EpochSteps, fc.EpochSteps)
	setI(&cfg.ValidationSize, fc.ValidationSize)
	setF(&cfg.PlanSlack, fc.PlanSlack)
	setI(&cfg.FrameMerge, fc.FrameMerge)
	setI(&cfg.FeatureDim, fc.FeatureDim)
	setI(&cfg.RetryCap, fc.RetryCap)
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.AugmentRotation != nil {
		cfg.Augment.Rotation = augment.Rotation(*fc.AugmentRotation)
	}
	setF(&cfg.Augment.ScaleMin, fc.AugmentScaleMin)
	setF(&cfg.Augment.ScaleMax, fc.AugmentScaleMax)
	if fc.AugmentAnisotropic != nil {
		cfg.Augment.Anisotropic = *fc.AugmentAnisotropic
	}
	if fc.AugmentSymmetries != nil {
		cfg.Augment.Symmetries = *fc.AugmentSymmetries
	}
	setF(&cfg.Augment.NoiseSigma, fc.AugmentNoise)

	return cfg, nil
}
