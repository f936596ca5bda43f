package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/repository/sqlite"
	"facewatch/internal/services/ai"
	"facewatch/internal/services/recognition"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "Rebuild the signature cache from the known faces directory")
	stats := flag.Bool("stats", false, "Print stored event counts per status")
	flag.Parse()

	if !*rebuild && !*stats {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logs := logger.New(os.Stdout, cfg.LogLevel)

	if *rebuild {
		rebuildCache(cfg, logs)
	}
	if *stats {
		printStats(cfg)
	}
}

func rebuildCache(cfg *config.Config, logs *logger.Logger) {
	engine, err := ai.NewFaceEngine(cfg.ModelDir, logs)
	if err != nil {
		log.Fatalf("Failed to load face models: %v", err)
	}
	defer engine.Close()

	fmt.Printf("Rebuilding %s from %s\n", cfg.CacheFile, cfg.KnownFacesDir)
	catalog := recognition.NewBuilder(engine, nil, logs).Rebuild(cfg.CacheFile, cfg.KnownFacesDir)

	counts := make(map[string]int)
	for i := 0; i < catalog.Len(); i++ {
		_, name := catalog.Entry(i)
		counts[name]++
	}

	fmt.Printf("Catalog holds %d signatures for %d identities\n", catalog.Len(), len(counts))
	for _, name := range catalog.Names() {
		fmt.Printf("   - %s: %d\n", name, counts[name])
	}
}

func printStats(cfg *config.Config) {
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		log.Fatalf("Event database not found: %v", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	counts, err := sqlite.NewEventRepository(db).CountByStatus()
	if err != nil {
		log.Fatalf("Failed to count events: %v", err)
	}

	statuses := make([]string, 0, len(counts))
	total := 0
	for status, n := range counts {
		statuses = append(statuses, string(status))
		total += n
	}
	sort.Strings(statuses)

	fmt.Printf("Event Statistics (%s):\n", cfg.DatabasePath)
	fmt.Printf("   Total events: %d\n", total)
	for _, status := range statuses {
		fmt.Printf("   %s: %d\n", status, counts[model.EventStatus(status)])
	}
}
