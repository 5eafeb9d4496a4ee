// sampler-bench exercises the batch pipeline end to end on synthetic
// frames: it plans an epoch, runs a configurable number of workers pulling
// batches from a shared sampler, and prints per-stage timings. Useful for
// tuning worker counts and pipeline parameters without a dataset or a
// training process attached.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pointbatch/internal/cloud"
	"github.com/banshee-data/pointbatch/internal/monitoring"
	"github.com/banshee-data/pointbatch/internal/pipeline"
	"github.com/banshee-data/pointbatch/internal/report"
	"github.com/banshee-data/pointbatch/internal/sampler"
	"github.com/banshee-data/pointbatch/internal/stats"
	"github.com/banshee-data/pointbatch/internal/taxonomy"
)

func main() {
	modeFlag := flag.String("mode", "training", "Split to benchmark (training, validation, test)")
	configPath := flag.String("config", "", "Optional JSON pipeline config; defaults apply when empty")
	workers := flag.Int("workers", 4, "Concurrent batch workers")
	batches := flag.Int("batches", 16, "Batches to build per worker")
	budget := flag.Int("budget", 0, "Per-batch point budget (0 = max points per sample)")
	frames := flag.Int("frames", 64, "Synthetic frames to generate")
	framePoints := flag.Int("frame-points", 30000, "Points per synthetic frame")
	balance := flag.Bool("balance", false, "Class-balanced epoch plan")
	seed := flag.Uint64("seed", 1, "Seed for frame synthesis and sampling")
	statsDB := flag.String("stats-db", "", "Optional SQLite path for the class statistics cache")
	reportPath := flag.String("report", "", "Optional HTML report output path")
	flag.Parse()

	if err := run(*modeFlag, *configPath, *workers, *batches, *budget, *frames, *framePoints, *balance, *seed, *statsDB, *reportPath); err != nil {
		fmt.Fprintf(os.Stderr, "sampler-bench: %v\n", err)
		os.Exit(1)
	}
}

func run(modeFlag, configPath string, workers, batches, budget, frames, framePoints int, balance bool, seed uint64, statsDB, reportPath string) error {
	mode, err := pipeline.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	cfg := pipeline.DefaultConfig()
	if configPath != "" {
		cfg, err = pipeline.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}
	cfg.Seed = seed
	if budget <= 0 {
		budget = cfg.MaxPoints(mode)
	}

	tax, err := benchTaxonomy()
	if err != nil {
		return err
	}

	src := synthesizeFrames(frames, framePoints, tax, seed)
	frameIndex, err := pipeline.NewFrameIndex([]int{frames})
	if err != nil {
		return err
	}

	ctx := context.Background()

	var store *stats.Store
	if statsDB != "" {
		store, err = stats.Open(statsDB)
		if err != nil {
			return err
		}
		defer store.Close()
	}
	split, err := pipeline.EnsureClassStats(ctx, store, src, frameIndex, tax, string(mode), cfg.FrameMerge)
	if err != nil {
		return err
	}

	ps, err := sampler.New(sampler.Config{
		FrameCount:  frameIndex.Len(),
		PlanLength:  cfg.PlanLength(mode),
		ClassFrames: split.ClassFrames,
		Seed:        seed,
	})
	if err != nil {
		return err
	}
	if _, err := ps.BeginEpoch(balance); err != nil {
		return err
	}

	timings := monitoring.NewStageTimings()
	runID := uuid.New().String()
	rep := report.NewRunReport(runID, string(mode))
	rep.ClassNames = benchClassNames(tax)

	monitoring.Logf("bench: run=%s mode=%s workers=%d batches=%d budget=%d frames=%d",
		runID, mode, workers, workers*batches, budget, frames)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			builder, err := pipeline.NewSampleBuilder(pipeline.BuilderConfig{
				Pipeline:       cfg,
				Mode:           mode,
				Source:         src,
				Frames:         frameIndex,
				BalanceClasses: balance,
				Observer:       timings,
				Seed:           seed + uint64(worker) + 1,
			})
			if err == nil {
				var assembler *pipeline.BatchAssembler
				assembler, err = pipeline.NewBatchAssembler(cfg, mode, ps, builder, nil)
				for i := 0; err == nil && i < batches; i++ {
					var batch *pipeline.Batch
					batch, err = assembler.BuildBatch(ctx, budget)
					if err == nil {
						mu.Lock()
						rep.AddBatch(batch)
						mu.Unlock()
					}
				}
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("worker %d: %w", worker, err)
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)
	if firstErr != nil {
		return firstErr
	}

	total := rep.TotalPoints()
	fmt.Printf("run %s: %d batches, %d points in %s (%.0f points/s)\n",
		runID, len(rep.Batches()), total, elapsed.Round(time.Millisecond),
		float64(total)/elapsed.Seconds())

	means := make(map[string]time.Duration)
	for _, stage := range timings.Stages() {
		means[stage] = timings.Mean(stage)
		fmt.Printf("  %-10s mean %s\n", stage, means[stage].Round(time.Microsecond))
	}

	if reportPath != "" {
		if err := rep.WriteHTMLFile(reportPath, means); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", reportPath)
	}
	return nil
}

// benchTaxonomy is a small fixed class set: an ignored background class and
// four content classes with very different frequencies.
func benchTaxonomy() (*taxonomy.Taxonomy, error) {
	return taxonomy.New(
		map[int32]int32{0: 0, 1: 1, 2: 2, 3: 3, 4: 4},
		map[int32]string{0: "unlabeled", 1: "ground", 2: "building", 3: "vehicle", 4: "pedestrian"},
		[]int32{0},
	)
}

func benchClassNames(tax *taxonomy.Taxonomy) map[int32]string {
	names := make(map[int32]string)
	for _, l := range tax.LabelValues() {
		names[l] = tax.Name(l)
	}
	return names
}

// synthesizeFrames fills a MemorySource with lidar-shaped frames: points
// scattered over a ground disc with building walls and a few dense object
// clusters, so crops and class balancing have structure to work against.
func synthesizeFrames(frames, pointsPerFrame int, tax *taxonomy.Taxonomy, seed uint64) *pipeline.MemorySource {
	src := pipeline.NewMemorySource()
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))

	for f := 0; f < frames; f++ {
		frame := pipeline.MemoryFrame{
			Points:    make([]cloud.Point, 0, pointsPerFrame),
			Intensity: make([]float32, 0, pointsPerFrame),
			Labels:    make([]int32, 0, pointsPerFrame),
			Transform: cloud.Rigid{
				1, 0, 0, float64(f) * 0.5,
				0, 1, 0, 0,
				0, 0, 1, 0,
				0, 0, 0, 1,
			},
		}
		for i := 0; i < pointsPerFrame; i++ {
			var p cloud.Point
			var label int32
			switch v := rng.Float64(); {
			case v < 0.55: // ground disc
				r := 40 * rng.Float64()
				theta := 2 * math.Pi * rng.Float64()
				p = cloud.Point{
					X: float32(r * math.Cos(theta)),
					Y: float32(r * math.Sin(theta)),
					Z: float32(rng.NormFloat64() * 0.05),
				}
				label = 1
			case v < 0.80: // building walls at the rim
				side := rng.IntN(4)
				along := 80*rng.Float64() - 40
				wall := cloud.Point{X: float32(along), Y: 40, Z: float32(8 * rng.Float64())}
				switch side {
				case 1:
					wall.Y = -40
				case 2:
					wall.X, wall.Y = 40, float32(along)
				case 3:
					wall.X, wall.Y = -40, float32(along)
				}
				p = wall
				label = 2
			case v < 0.95: // vehicle clusters
				cx := 30*rng.Float64() - 15
				cy := 30*rng.Float64() - 15
				p = cloud.Point{
					X: float32(cx + rng.NormFloat64()*0.8),
					Y: float32(cy + rng.NormFloat64()*0.4),
					Z: float32(0.8 + rng.NormFloat64()*0.3),
				}
				label = 3
			default: // pedestrians, rare
				cx := 20*rng.Float64() - 10
				cy := 20*rng.Float64() - 10
				p = cloud.Point{
					X: float32(cx + rng.NormFloat64()*0.2),
					Y: float32(cy + rng.NormFloat64()*0.2),
					Z: float32(0.9 + rng.NormFloat64()*0.4),
				}
				label = 4
			}
			frame.Points = append(frame.Points, p)
			frame.Intensity = append(frame.Intensity, float32(rng.Float64()))
			frame.Labels = append(frame.Labels, label)
		}
		frame.Labels = tax.Remap(frame.Labels)
		src.Add(0, f, frame)
	}
	return src
}
