// Package main provides the independent roadwatch health checker.
//
// It reads the persisted health artifact and asserts freshness without
// re-running the pipeline: no network, no writes. Exit code 0 when healthy,
// 1 when any error condition holds. The result is printed as JSON on stdout
// for automation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/config"
	"github.com/roadwatch-io/roadwatch/internal/health"
)

// Version information.
const (
	version = "1.0.0"
	name    = "healthcheck"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	dirFlag := flag.String("dir", "", "output directory holding the health artifact (default $ROADWATCH_OUTPUT_DIR or ./data)")
	maxAgeFlag := flag.Int("max-age-hours", 0, "staleness threshold in hours (default $ROADWATCH_MAX_AGE_HOURS or 8)")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	dir := *dirFlag
	if dir == "" {
		dir = config.GetEnvStr("ROADWATCH_OUTPUT_DIR", "./data")
	}

	maxAgeHours := *maxAgeFlag
	if maxAgeHours <= 0 {
		maxAgeHours = config.GetEnvInt("ROADWATCH_MAX_AGE_HOURS", 8)
	}

	result := health.Check(dir, time.Duration(maxAgeHours)*time.Hour)

	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode check result: %v\n", err)
		os.Exit(1)
	}

	if !result.OK {
		os.Exit(1)
	}
}
