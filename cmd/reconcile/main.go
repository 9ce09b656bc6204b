// Command reconcile runs a one-shot reconciliation over an alarm txt
// export and a sales xlsx export, printing unmatched alarm events in
// display order.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/floorwatch/floorwatch/internal/domain/alarmlog"
	"github.com/floorwatch/floorwatch/internal/domain/reconciler"
	"github.com/floorwatch/floorwatch/internal/domain/saleslog"
	"github.com/floorwatch/floorwatch/internal/infrastructure/config"
	"github.com/floorwatch/floorwatch/internal/infrastructure/logging"
	"github.com/floorwatch/floorwatch/internal/infrastructure/storage"
)

// Exit codes: 1 for precondition failures (missing inputs, date
// mismatch), 2 for unreadable sources.
const (
	exitPrecondition = 1
	exitUnreadable   = 2
)

func main() {
	var (
		alarmPath  = flag.String("alarm", "", "Path to the alarm txt export (required)")
		salesPath  = flag.String("sales", "", "Path to the sales xlsx export (required)")
		tolerance  = flag.Int("tolerance", -1, "Override tolerance seconds (default: stored setting)")
		offset     = flag.Int("offset", 0, "Override offset seconds (used only with -tolerance)")
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if *alarmPath == "" || *salesPath == "" {
		fmt.Fprintln(os.Stderr, "both -alarm and -sales are required")
		flag.Usage()
		os.Exit(exitPrecondition)
	}

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "reconcile")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(exitUnreadable)
	}
	defer store.Close()

	matching, err := store.GetMatchingConfig()
	if err != nil {
		logger.Error("Failed to load matching config", slog.String("error", err.Error()))
		os.Exit(exitUnreadable)
	}
	if *tolerance >= 0 {
		matching = reconciler.Config{ToleranceSeconds: *tolerance, OffsetSeconds: *offset}
	}

	alarmFloors, err := store.GetMapping(storage.MappingAlarm)
	if err != nil {
		logger.Error("Failed to load alarm mapping", slog.String("error", err.Error()))
		os.Exit(exitUnreadable)
	}
	salesFloors, err := store.GetMapping(storage.MappingSales)
	if err != nil {
		logger.Error("Failed to load sales mapping", slog.String("error", err.Error()))
		os.Exit(exitUnreadable)
	}

	alarmData, err := os.ReadFile(*alarmPath)
	if err != nil {
		logger.Error("Failed to read alarm export", slog.String("error", err.Error()))
		os.Exit(exitUnreadable)
	}
	alarm := alarmlog.Parse(alarmData, alarmFloors)

	salesFile, err := os.Open(*salesPath)
	if err != nil {
		logger.Error("Failed to read sales export", slog.String("error", err.Error()))
		os.Exit(exitUnreadable)
	}
	sales, err := saleslog.Parse(salesFile, salesFloors)
	_ = salesFile.Close()
	if err != nil {
		logger.Error("Failed to parse sales export", slog.String("error", err.Error()))
		os.Exit(exitUnreadable)
	}

	logger.Debug("sources parsed",
		"alarm_events", len(alarm.Events), "alarm_dropped", alarm.Dropped,
		"sales_events", len(sales.Events), "sales_dropped", sales.Dropped)

	if !reconciler.DatesMatch(alarm.SourceDate, sales.SourceDate) {
		fmt.Fprintf(os.Stderr, "dates do not match: alarm=%q sales=%q\n",
			alarm.SourceDate, sales.SourceDate)
		os.Exit(exitPrecondition)
	}

	unmatched := reconciler.Reconcile(alarm.Events, sales.Events, matching)

	fmt.Printf("date %s, tolerance %ds, offset %ds\n",
		alarm.SourceDate, matching.ToleranceSeconds, matching.OffsetSeconds)
	fmt.Printf("alarm events: %d (%d dropped), sales events: %d (%d dropped)\n",
		len(alarm.Events), alarm.Dropped, len(sales.Events), sales.Dropped)
	fmt.Printf("unmatched alarm events: %d\n", len(unmatched))

	for _, e := range reconciler.SortForDisplay(unmatched) {
		fmt.Printf("  floor %s  %s\n", e.Floor, e.Time)
	}
}
