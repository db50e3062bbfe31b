package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"coursecal/internal/app"
	"coursecal/internal/config"
	"coursecal/internal/course"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/state"
	"coursecal/internal/status"
	"coursecal/internal/viewer"
	"coursecal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	validate   string
	load       string
	importICS  string
	example    bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	store := course.NewStore(course.Options{
		Location:                loc,
		RejectInvertedIntervals: conf.RejectInvertedIntervals,
	})
	a := app.New(store, state.NewFileKV(conf.DataDir))
	fetcher := ics.NewFetcher(filepath.Join(conf.DataDir, "ics-cache"), &http.Client{Timeout: 20 * time.Second})

	switch {
	case flags.example:
		os.Exit(runExample(loc))
	case flags.validate != "":
		os.Exit(runValidate(a, flags.validate))
	case flags.load != "":
		os.Exit(runLoad(a, flags.load))
	case flags.importICS != "":
		os.Exit(runImportICS(a, fetcher, conf, loc, flags.importICS))
	}

	appLog.Info("coursecal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"data_dir", conf.DataDir,
		"status_refresh", conf.StatusRefresh,
		"reject_inverted_intervals", conf.RejectInvertedIntervals,
		"import_days", conf.ImportDays,
	)

	// Startup never fails on bad stored data; the viewer starts empty.
	if res, err := a.Restore(); err != nil {
		appLog.Warn("starting with no courses", "notice", app.ErrorNotice(err).Message)
	} else {
		appLog.Info("courses restored", "loaded", res.Loaded, "rejected", res.Rejected)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracker := status.NewTracker(store, loc)
	if err := tracker.Start(conf.StatusRefresh); err != nil {
		appLog.Error("failed to start status tracker", err, "schedule", conf.StatusRefresh)
		os.Exit(1)
	}

	srv := web.NewServer(conf, web.Deps{
		App:       a,
		Navigator: viewer.NewNavigator(time.Now(), loc, conf.FirstWeekday()),
		Tracker:   tracker,
		Fetcher:   fetcher,
	})
	if err := srv.Run(ctx); err != nil {
		appLog.Error("http server failed", err, "listen", conf.Listen)
	}

	<-tracker.Stop().Done()
	appLog.Info("coursecal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/coursecal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.validate, "validate", "", "Validate a course data file (\"-\" for stdin) and exit")
	flag.StringVar(&cfg.load, "load", "", "Load and save a course data file (\"-\" for stdin) and exit")
	flag.StringVar(&cfg.importICS, "import-ics", "", "Import an ICS file or http(s) URL as course data and exit")
	flag.BoolVar(&cfg.example, "example", false, "Print example course data and exit")

	flag.Parse()

	return cfg
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func printNotice(n app.Notice) {
	fmt.Printf("[%s] %s\n", n.Level, n.Message)
}

func runExample(loc *time.Location) int {
	raw, err := course.ExamplePayload(time.Now().In(loc))
	if err != nil {
		appLog.Error("failed to build example", err)
		return 1
	}
	fmt.Println(raw)
	return 0
}

func runValidate(a *app.App, path string) int {
	raw, err := readInput(path)
	if err != nil {
		appLog.Error("failed to read input", err, "path", path)
		return 1
	}

	report, err := a.Validate(raw)
	if err != nil {
		printNotice(app.ErrorNotice(err))
		return 1
	}
	for _, n := range app.ValidationNotices(report) {
		printNotice(n)
	}
	for _, msg := range report.ErrorMessages() {
		fmt.Println("  " + msg)
	}
	if !report.SyntaxValid || !report.FormatSupported {
		return 1
	}
	return 0
}

func runLoad(a *app.App, path string) int {
	raw, err := readInput(path)
	if err != nil {
		appLog.Error("failed to read input", err, "path", path)
		return 1
	}

	res, err := a.Commit(raw)
	printNotice(app.LoadNotice(res, err))
	if err != nil {
		return 1
	}
	return 0
}

func runImportICS(a *app.App, f *ics.Fetcher, conf *config.Config, loc *time.Location, src string) int {
	w := app.ImportWindow(time.Now().In(loc), conf.ImportDays)

	var (
		res course.LoadResult
		imp ics.ImportResult
		err error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		res, imp, err = a.ImportICSURL(ctx, f, src, w)
	} else {
		var body string
		body, err = readInput(src)
		if err != nil {
			appLog.Error("failed to read input", err, "path", src)
			return 1
		}
		res, imp, err = a.ImportICS([]byte(body), w)
	}
	if err != nil {
		appLog.Error("ics import failed", err)
		printNotice(app.ErrorNotice(err))
		return 1
	}

	printNotice(app.LoadNotice(res, nil))
	if imp.SkippedAllDay > 0 {
		fmt.Printf("skipped %d all-day events\n", imp.SkippedAllDay)
	}
	for _, uid := range imp.Truncated {
		fmt.Printf("recurrence truncated: %s\n", uid)
	}
	return 0
}
