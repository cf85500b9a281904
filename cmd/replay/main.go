// Command replay runs a recorded track through the live run pipeline and
// prints the resulting stats and lap splits.
//
//	replay -fixes track.csv [-workout plan.json] [-lap-distance 1609.34]
//
// The CSV has one fix per row: lat,lon,alt,accuracy,timestamp (RFC3339).
// alt may be empty. A header row starting with "lat" is skipped.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/config"
	"github.com/Zchasse63/voice-fit-sub006/internal/location"
	"github.com/Zchasse63/voice-fit-sub006/internal/run"
	"github.com/Zchasse63/voice-fit-sub006/internal/shared/units"
	"github.com/Zchasse63/voice-fit-sub006/internal/workout"
)

var errNoFixes = errors.New("no fixes in input")

func main() {
	if err := replay(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

func replay(ctx context.Context, args []string, out io.Writer) error {
	tracking := config.DefaultTracking()

	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(out)
	fixesPath := fs.String("fixes", "", "CSV file of fixes")
	workoutPath := fs.String("workout", "", "optional workout JSON")
	fs.Float64Var(&tracking.LapDistanceM, "lap-distance", tracking.LapDistanceM, "auto lap distance in meters")
	fs.Float64Var(&tracking.MaxAccuracyM, "max-accuracy", tracking.MaxAccuracyM, "reject fixes less accurate than this")
	fs.BoolVar(&tracking.LapOnSegmentChange, "segment-laps", tracking.LapOnSegmentChange, "close a lap at each segment change")
	verbose := fs.Bool("v", false, "log pipeline events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fixesPath == "" {
		return errors.New("-fixes is required")
	}

	fixes, err := readFixesFile(*fixesPath)
	if err != nil {
		return err
	}
	if len(fixes) == 0 {
		return errNoFixes
	}

	var plan *workout.CustomWorkout
	if *workoutPath != "" {
		if plan, err = readWorkoutFile(*workoutPath); err != nil {
			return err
		}
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	start := fixes[0].Timestamp
	runner := run.New(run.Options{
		UserID:   "replay",
		Workout:  plan,
		Tracking: tracking,
		Logger:   logger,
		Clock:    func() time.Time { return start },
	})
	if err := runner.Start(); err != nil {
		return err
	}
	unsubscribe, err := runner.Attach(ctx, location.NewReplayProvider(fixes))
	if err != nil {
		return err
	}
	unsubscribe()

	report(out, runner.Stop())
	return nil
}

func report(out io.Writer, res run.Result) {
	s := res.Record.Stats
	fmt.Fprintf(out, "distance   %.2f mi\n", units.MilesOf(s.DistanceMeters))
	fmt.Fprintf(out, "duration   %s\n", time.Duration(s.DurationSeconds*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(out, "pace       %s /mi\n", units.FormatPace(s.PaceMinPerMile))
	if s.GradeAdjustedPaceMinPerMile != nil {
		fmt.Fprintf(out, "gap        %s /mi\n", units.FormatPace(*s.GradeAdjustedPaceMinPerMile))
	}
	fmt.Fprintf(out, "elevation  +%.0f m / -%.0f m\n", s.ElevationGainMeters, s.ElevationLossMeters)
	fmt.Fprintf(out, "calories   %.0f\n", s.Calories)
	fmt.Fprintf(out, "filtered   %d accepted, %d rejected\n", res.Record.Filter.Accepted, res.Record.Filter.TotalRejected())

	for _, split := range res.Laps.Laps {
		mark := ""
		if split.Best {
			mark = " *"
		}
		if split.Manual {
			mark += " (manual)"
		}
		fmt.Fprintf(out, "lap %-3d %6.2f mi  %s  %s%s\n",
			split.LapNumber, units.MilesOf(split.DistanceMeters),
			units.FormatPace(split.PaceMinPerMile), units.FormatDelta(split.DeltaToAverage), mark)
	}

	if res.Workout != nil {
		fmt.Fprintf(out, "workout    %s: %d/%d segments\n",
			res.Workout.Workout.Name, min(res.Workout.CurrentSegmentIndex, len(res.Workout.Workout.Segments)), len(res.Workout.Workout.Segments))
	}
}

func readFixesFile(path string) ([]location.Fix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFixes(f)
}

func readFixes(r io.Reader) ([]location.Fix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true

	var fixes []location.Fix
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return fixes, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.HasPrefix(strings.ToLower(rec[0]), "lat") {
			continue
		}
		fix, err := parseFix(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fixes = append(fixes, fix)
	}
}

func parseFix(rec []string) (location.Fix, error) {
	var fix location.Fix
	var err error
	if fix.Latitude, err = strconv.ParseFloat(rec[0], 64); err != nil {
		return fix, fmt.Errorf("lat: %w", err)
	}
	if fix.Longitude, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return fix, fmt.Errorf("lon: %w", err)
	}
	if rec[2] != "" {
		alt, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return fix, fmt.Errorf("alt: %w", err)
		}
		fix.Altitude = &alt
	}
	if fix.HorizontalAccuracy, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return fix, fmt.Errorf("accuracy: %w", err)
	}
	if fix.Timestamp, err = time.Parse(time.RFC3339, rec[4]); err != nil {
		return fix, fmt.Errorf("timestamp: %w", err)
	}
	return fix, nil
}

func readWorkoutFile(path string) (*workout.CustomWorkout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w workout.CustomWorkout
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode workout: %w", err)
	}
	built, err := workout.NewWorkout("replay", w.Name, w.Description, w.Segments)
	if err != nil {
		return nil, err
	}
	return &built, nil
}
