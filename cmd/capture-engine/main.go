package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	captureengine "github.com/dermoscan/capture-engine"
	"github.com/dermoscan/capture-engine/internal/config"
	"github.com/dermoscan/capture-engine/internal/utils"
	"github.com/dermoscan/capture-engine/pkg/blur"
	"github.com/dermoscan/capture-engine/pkg/guide"
	"github.com/dermoscan/capture-engine/pkg/processing"
)

func main() {
	var in, outDir, previewSpec, configPath string
	var threshold, guideSide float64
	var quality int

	flag.StringVar(&in, "in", "", "input frame path (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory for the crop")
	flag.StringVar(&previewSpec, "preview", "400x800", "preview viewport size as WxH in logical units")
	flag.StringVar(&configPath, "config", "", "optional JSON config file")
	flag.Float64Var(&threshold, "threshold", 0, "blur threshold override (0 = config default)")
	flag.Float64Var(&guideSide, "guide", 0, "guide square side override (0 = config default)")
	flag.IntVar(&quality, "quality", 0, "JPEG crop quality override (0 = config default)")

	flag.Parse()
	if in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in frame.jpg [-preview 400x800] [-out outdir] [-threshold 70] [-guide 250]\n",
			filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("error loading .env file", "err", err)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			slog.Error("unable to load config", "path", configPath, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.LoadEnv()
	if threshold > 0 {
		cfg.Blur.Threshold = threshold
	}
	if guideSide > 0 {
		cfg.Guide.Side = guideSide
	}
	if quality > 0 {
		cfg.Output.JPEGQuality = quality
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	previewW, previewH, err := parsePreview(previewSpec)
	if err != nil {
		slog.Error("invalid preview size", "preview", previewSpec, "err", err)
		os.Exit(1)
	}

	if !utils.FileExists(in) {
		slog.Error("input file not found", "path", in)
		os.Exit(1)
	}
	if !utils.IsImageFile(in) {
		slog.Error("input is not a supported image", "path", in)
		os.Exit(1)
	}
	if err := utils.EnsureDir(outDir); err != nil {
		slog.Error("unable to create output directory", "dir", outDir, "err", err)
		os.Exit(1)
	}

	engine := captureengine.NewWithConfig(
		blur.Config{Threshold: cfg.Blur.Threshold, BrightnessFloor: cfg.Blur.BrightnessFloor},
		guide.Config{GuideSide: cfg.Guide.Side},
		processing.Config{JPEGQuality: cfg.Output.JPEGQuality},
	)

	img, err := engine.LoadImage(in)
	if err != nil {
		slog.Error("unable to load frame", "path", in, "err", err)
		os.Exit(1)
	}
	bounds := img.Bounds()

	eval := engine.EvaluateCapture(img)
	slog.Info("frame evaluated",
		"path", in, "size", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
		"score", eval.BlurScore, "accepted", eval.Accepted, "bright", eval.BrightEnough)
	if !eval.Accepted {
		// Advisory only: still crop, but tell the operator
		slog.Warn("frame scored below the blur threshold, consider retaking",
			"score", eval.BlurScore, "threshold", cfg.Blur.Threshold)
	}

	rect, err := engine.MapGuide(img, previewW, previewH)
	if err != nil {
		slog.Error("guide mapping failed", "err", err)
		os.Exit(1)
	}
	slog.Info("guide mapped", "left", rect.Left, "top", rect.Top, "side", rect.Side)

	cropped, err := engine.CropToGuide(img, previewW, previewH)
	if err != nil {
		slog.Error("crop failed", "err", err)
		os.Exit(1)
	}

	path, err := engine.SaveCrop(cropped, outDir)
	if err != nil {
		slog.Error("unable to save crop", "err", err)
		os.Exit(1)
	}
	slog.Info("wrote crop", "path", path)

	report, _ := json.MarshalIndent(struct {
		Input      string                   `json:"input"`
		Evaluation captureengine.Evaluation `json:"evaluation"`
		Crop       guide.CropRect           `json:"crop"`
		Output     string                   `json:"output"`
	}{in, eval, rect, path}, "", "  ")
	_ = os.WriteFile(filepath.Join(outDir, "capture_report.json"), report, 0o644)
}

func parsePreview(spec string) (float64, float64, error) {
	parts := strings.SplitN(strings.ToLower(spec), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WxH")
	}
	var w, h float64
	if _, err := fmt.Sscanf(parts[0], "%g", &w); err != nil {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(parts[1], "%g", &h); err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("dimensions must be positive")
	}
	return w, h, nil
}
