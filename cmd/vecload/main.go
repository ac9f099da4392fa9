// Command vecload opens a vector storage segment, reports basic stats, and
// smoke-scores a random query against it. It exists to exercise the
// vecstore facade end-to-end outside of tests, mirroring the small
// diagnostic-CLI convention the teacher repo used for its document
// pipeline tools.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"vecstore"
	"vecstore/internal/config"
	"vecstore/internal/errlog"
	"vecstore/metric"
	"vecstore/scorer"
)

func main() {
	configPath := flag.String("config", "vecload.json", "path to the storage config file")
	topK := flag.Int("top", 5, "number of results to print")
	flag.Parse()

	if err := errlog.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "vecload: failed to init error log: %v\n", err)
	}
	defer errlog.Close()

	mgr := config.NewManager(*configPath)
	if err := mgr.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "vecload: failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := mgr.Get()

	distance, err := metric.ParseDistance(cfg.Distance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vecload: %v\n", err)
		os.Exit(1)
	}

	storage, err := vecstore.Open(cfg.DBPath, cfg.Column, cfg.Dim, distance)
	if err != nil {
		errlog.Logf("vecload: open failed: %v", err)
		fmt.Fprintf(os.Stderr, "vecload: open failed: %v\n", err)
		os.Exit(1)
	}
	defer storage.Close()

	fmt.Printf("dim=%d distance=%s total=%d live=%d deleted=%d simd=%s\n",
		storage.VectorDim(), cfg.Distance, storage.TotalVectorCount(),
		storage.VectorCount(), storage.DeletedCount(), scorer.Capability())

	if storage.VectorCount() == 0 {
		return
	}

	query := make([]float32, storage.VectorDim())
	for i := range query {
		query[i] = rand.Float32()
	}

	results := storage.Scorer().ScoreAll(query, *topK)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
