// Command recognize registers one or more model PCD files, estimates
// normals, and recognizes the models in a scene PCD, printing one JSON
// result per detected instance.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/biotinker/objrec"
	"github.com/biotinker/objrec/normals"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
)

type result struct {
	Name            string      `json:"name"`
	MatchConfidence float64     `json:"match_confidence"`
	Rotation        [9]float64  `json:"rotation_row_major"`
	Translation     [3]float64  `json:"translation"`
}

func main() {
	scenePath := flag.String("scene", "", "path to the scene PCD file")
	modelPaths := flag.String("models", "", "comma-separated model PCD paths; each model is named after its file")
	pairWidth := flag.Float64("pair-width", 0, "expected pair width (roughly half the visible object extent)")
	voxelSize := flag.Float64("voxel-size", 0, "voxel size for scene and model discretization")
	successProb := flag.Float64("success", 0.99, "desired detection probability")
	neighbors := flag.Int("normal-neighbors", 15, "K for PCA normal estimation")
	flag.Parse()

	logger := logging.NewLogger("objrec-cli")

	if *scenePath == "" {
		logger.Fatal("-scene flag is required")
	}
	if *modelPaths == "" {
		logger.Fatal("-models flag is required")
	}
	if *pairWidth <= 0 || *voxelSize <= 0 {
		logger.Fatal("-pair-width and -voxel-size must be positive")
	}

	rec := objrec.New(*pairWidth, *voxelSize, logger)

	for _, path := range strings.Split(*modelPaths, ",") {
		path = strings.TrimSpace(path)
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		pts, nrm := loadOrientedCloud(logger, path, *neighbors)
		if !rec.AddModel(pts, nrm, name, nil) {
			logger.Fatalf("duplicate model name %q (from %s)", name, path)
		}
		logger.Infof("registered model %q: %d points", name, len(pts))
	}

	scenePts, sceneNrm := loadOrientedCloud(logger, *scenePath, *neighbors)
	logger.Infof("scene: %d points", len(scenePts))

	outputs, err := rec.Recognize(scenePts, sceneNrm, *successProb)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("recognized %d object instance(s)", len(outputs))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, out := range outputs {
		res := result{
			Name:            out.Name,
			MatchConfidence: out.MatchConfidence,
		}
		copy(res.Rotation[:], out.Transform[:9])
		copy(res.Translation[:], out.Transform[9:])
		if err := enc.Encode(res); err != nil {
			logger.Fatal(err)
		}
	}
}

// loadOrientedCloud reads a PCD file and estimates per-point normals,
// oriented toward the origin (the usual camera position for depth captures).
func loadOrientedCloud(logger logging.Logger, path string, k int) ([]r3.Vector, []r3.Vector) {
	cloud, err := pointcloud.NewFromFile(path, logger)
	if err != nil {
		logger.Fatalf("failed to load PCD %s: %v", path, err)
	}
	pts, nrm, err := normals.Estimate(cloud, k, r3.Vector{})
	if err != nil {
		logger.Fatalf("normal estimation for %s: %v", path, err)
	}
	return pts, nrm
}
