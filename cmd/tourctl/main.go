// Command tourctl solves closed tours from point files without running the API.
//
//	tourctl [-depot N] [-mode auto|exact|heuristic] [-exact-max N] [-passes N] [-json] FILE...
//
// FILE is CSV (label,lat,lng) or YAML/JSON holding a tour request
// ({label, depot, mode, exactMaxN, maxTwoOptPasses, points: [{label, lat, lng}]}).
// Flags given on the command line override the settings of a request file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	ansi "github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	yaml "gopkg.in/yaml.v3"

	"routeplanner/internal/geo"
	"routeplanner/internal/integrations"
	"routeplanner/internal/integrations/csvstops"
	"routeplanner/internal/model"
	"routeplanner/internal/opt"
	"routeplanner/internal/present"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, ansi.NewAnsiStderr()))
}

type job struct {
	path   string
	label  string
	depot  int
	points []geo.Point
	res    opt.Result
	err    error
}

// overrides holds the solver flags set on the command line.
type overrides struct {
	depot    *int
	mode     *opt.Mode
	exactMax *int
	passes   *int
}

// options merges defaults, the request file's settings and the flags, in
// that order of precedence.
func (ov overrides) options(req model.TourRequest) (opt.Options, error) {
	o := opt.DefaultOptions()
	if req.Mode != "" {
		m, ok := opt.ParseMode(req.Mode)
		if !ok {
			return o, fmt.Errorf("unknown mode %q", req.Mode)
		}
		o.Mode = m
	}
	if req.ExactMaxN > 0 {
		o.ExactMaxN = req.ExactMaxN
	}
	if req.MaxTwoOptPasses > 0 {
		o.MaxTwoOptPasses = req.MaxTwoOptPasses
	}
	if ov.mode != nil {
		o.Mode = *ov.mode
	}
	if ov.exactMax != nil {
		o.ExactMaxN = *ov.exactMax
	}
	if ov.passes != nil {
		o.MaxTwoOptPasses = *ov.passes
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tourctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	depot := fs.Int("depot", 0, "depot index")
	mode := fs.String("mode", "auto", "solver mode: auto, exact or heuristic")
	exactMax := fs.Int("exact-max", opt.DefaultExactMaxN, "largest tour solved exactly in auto mode (max 16)")
	passes := fs.Int("passes", opt.DefaultMaxTwoOptPasses, "2-opt pass budget")
	asJSON := fs.Bool("json", false, "print JSON instead of the stop list")
	workers := fs.Int("workers", 4, "files solved concurrently")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tourctl [flags] FILE...")
		fmt.Fprintln(stderr, "Settings in a YAML/JSON request file apply unless the matching flag is given.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	var ov overrides
	var badMode bool
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "depot":
			ov.depot = depot
		case "mode":
			m, ok := opt.ParseMode(*mode)
			if !ok {
				badMode = true
				return
			}
			ov.mode = &m
		case "exact-max":
			ov.exactMax = exactMax
		case "passes":
			ov.passes = passes
		}
	})
	if badMode {
		fmt.Fprintf(stderr, "unknown mode %q\n", *mode)
		return 2
	}

	jobs := make([]*job, fs.NArg())
	for i, p := range fs.Args() {
		jobs[i] = &job{path: p}
	}
	var bar *progressbar.ProgressBar
	if len(jobs) > 1 {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetDescription("[cyan]solving[reset]"),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
	}
	var g errgroup.Group
	if *workers > 0 {
		g.SetLimit(*workers)
	}
	for _, j := range jobs {
		g.Go(func() error {
			j.err = solveFile(ctx, j, ov)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	status := 0
	for _, j := range jobs {
		if j.err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", j.path, j.err)
			status = 1
			continue
		}
		if len(jobs) > 1 && !*asJSON {
			fmt.Fprintf(stdout, "== %s ==\n", j.path)
		}
		if err := printJob(stdout, j, *asJSON); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", j.path, err)
			status = 1
		}
	}
	return status
}

func solveFile(ctx context.Context, j *job, ov overrides) error {
	points, req, err := load(ctx, j.path)
	if err != nil {
		return err
	}
	o, err := ov.options(req)
	if err != nil {
		return fmt.Errorf("%s: %w", j.path, err)
	}
	depot := req.Depot
	if ov.depot != nil {
		depot = *ov.depot
	}
	res, err := opt.Optimize(points, depot, o)
	if err != nil {
		return err
	}
	j.points, j.label, j.depot, j.res = points, req.Label, depot, res
	return nil
}

// load reads a CSV points file or a YAML/JSON tour request. CSV files carry
// no solver settings.
func load(ctx context.Context, path string) ([]geo.Point, model.TourRequest, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		var src integrations.PointSource = &csvstops.Adapter{Path: path}
		pts, err := src.FetchPoints(ctx)
		return pts, model.TourRequest{}, err
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, model.TourRequest{}, err
		}
		var req model.TourRequest
		if err := yaml.Unmarshal(data, &req); err != nil {
			return nil, model.TourRequest{}, fmt.Errorf("parse %s: %w", path, err)
		}
		for i, p := range req.Points {
			if p.Lat == nil || p.Lng == nil {
				return nil, model.TourRequest{}, fmt.Errorf("point %d: %w: lat and lng required", i, geo.ErrInvalidCoordinate)
			}
		}
		return req.GeoPoints(), req, nil
	default:
		return nil, model.TourRequest{}, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func printJob(w io.Writer, j *job, asJSON bool) error {
	if !asJSON {
		if j.label != "" {
			fmt.Fprintf(w, "# %s\n", j.label)
		}
		return present.Text(w, j.points, j.res)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"file":     j.path,
		"label":    j.label,
		"depot":    j.depot,
		"result":   j.res,
		"stops":    present.Stops(j.points, j.res),
		"polyline": present.Polyline(j.points, j.res.Order),
		"bounds":   present.BoundsOf(j.points),
	})
}
