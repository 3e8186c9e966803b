package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/browser"
	"github.com/formpilot/formpilot/internal/capture"
	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/fill"
	"github.com/formpilot/formpilot/internal/index"
	"github.com/formpilot/formpilot/internal/match"
	"github.com/formpilot/formpilot/internal/provider"
	"github.com/formpilot/formpilot/internal/schema"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
)

func main() {
	godotenv.Load()

	targetURL := flag.String("url", "", "Live page URL to fill (requires a browser)")
	answersPath := flag.String("answers", "", "JSON answers file (skips the provider)")
	outDir := flag.String("output", "", "Directory for rewritten HTML (default: alongside input)")
	autoSubmit := flag.Bool("auto-submit", false, "Submit the form after filling")
	selection := flag.String("selection", "", "Selected text to scope the operation to")
	focus := flag.String("focus", "", "CSS selector of the focused control")
	schemaOnly := flag.Bool("schema", false, "Discover and print the schema without filling")
	headless := flag.Bool("headless", true, "Run browser in headless mode")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall operation timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()
	files := flag.Args()

	if *targetURL == "" && len(files) == 0 {
		red.Println("nothing to do: pass HTML files or -url")
		fmt.Println("usage: fill [flags] file.html ...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var logger *zap.Logger
	if *verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"/dev/null"}
		logger, _ = cfg.Build()
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Inline answers beat the provider when both are available.
	var answers json.RawMessage
	if *answersPath != "" {
		data, err := os.ReadFile(*answersPath)
		if err != nil {
			red.Printf("reading answers: %v\n", err)
			os.Exit(1)
		}
		answers = data
	}

	var orchestrator *capture.Orchestrator
	if answers == nil {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" && !*schemaOnly {
			red.Println("ANTHROPIC_API_KEY not set and no -answers file given")
			os.Exit(1)
		}
		if apiKey != "" {
			cfg := provider.DefaultConfig()
			cfg.APIKey = apiKey
			client, err := provider.NewClient(cfg, logger, nil)
			if err != nil {
				red.Printf("creating provider: %v\n", err)
				os.Exit(1)
			}
			orchestrator = capture.New(client, capture.Config{AutoSubmit: *autoSubmit}, logger, nil)
		}
	}

	run := runConfig{
		answers:      answers,
		orchestrator: orchestrator,
		autoSubmit:   *autoSubmit,
		selection:    *selection,
		focus:        *focus,
		schemaOnly:   *schemaOnly,
	}

	if *targetURL != "" {
		if err := fillLivePage(ctx, *targetURL, run, *headless, logger); err != nil {
			red.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	fillFiles(ctx, files, *outDir, run)
}

type runConfig struct {
	answers      json.RawMessage
	orchestrator *capture.Orchestrator
	autoSubmit   bool
	selection    string
	focus        string
	schemaOnly   bool
}

type runOutcome struct {
	filled    int
	submitted bool
	strategy  string
	plan      []fill.Mutation
	html      string
}

// fillDocument runs one operation against a parsed document.
func fillDocument(ctx context.Context, d *dom.Document, run runConfig) (runOutcome, error) {
	if run.selection != "" {
		d.SetSelectionText(run.selection)
	}
	if run.focus != "" {
		if n := d.Query(run.focus); n != nil {
			d.SetFocus(n)
		}
	}

	var out runOutcome
	switch {
	case run.schemaOnly:
		s := schema.Collect(d)
		enc, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return out, err
		}
		fmt.Println(string(enc))

	case run.answers != nil:
		payload, err := match.Parse(run.answers)
		if err != nil {
			return out, fmt.Errorf("parsing answers: %w", err)
		}
		schema.Collect(d)
		ix := index.Build(d)
		f := fill.New(ix, fill.Config{AutoSubmit: run.autoSubmit}, nil)
		res := f.Apply(payload)
		out.filled = res.Filled
		out.submitted = res.Submitted
		out.plan = f.Mutator().Plan()

	default:
		res, strategy, err := run.orchestrator.Run(ctx, d)
		if err != nil {
			return out, err
		}
		out.filled = res.Filled
		out.submitted = res.Submitted
		out.strategy = string(strategy)
		out.plan = run.orchestrator.Plan()
	}

	html, err := d.Render()
	if err != nil {
		return out, fmt.Errorf("rendering: %w", err)
	}
	out.html = html
	return out, nil
}

// fillFiles processes local HTML files in order.
func fillFiles(ctx context.Context, files []string, outDir string, run runConfig) {
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("   Filling..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	totalFilled := 0
	failures := 0

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			red.Printf("\n%s: %v\n", path, err)
			failures++
			bar.Add(1)
			continue
		}

		d, err := dom.ParseString(string(data))
		if err != nil {
			red.Printf("\n%s: %v\n", path, err)
			failures++
			bar.Add(1)
			continue
		}

		out, err := fillDocument(ctx, d, run)
		if err != nil {
			red.Printf("\n%s: %v\n", path, err)
			failures++
			bar.Add(1)
			continue
		}
		totalFilled += out.filled

		if !run.schemaOnly {
			dest := rewrittenPath(path, outDir)
			if err := os.WriteFile(dest, []byte(out.html), 0644); err != nil {
				red.Printf("\n%s: writing output: %v\n", path, err)
				failures++
			}
		}
		bar.Add(1)
	}
	fmt.Println()

	if failures > 0 {
		yellow.Printf("⚠ %d of %d files failed\n", failures, len(files))
	}
	green.Printf("✓ filled %d inputs across %d files\n", totalFilled, len(files)-failures)
	if failures > 0 {
		os.Exit(1)
	}
}

// fillLivePage snapshots a real page, fills the detached copy, and replays
// the mutation plan against the live page.
func fillLivePage(ctx context.Context, url string, run runConfig, headless bool, logger *zap.Logger) error {
	cyan.Printf("🎯 Target: %s\n", url)

	cfg := browser.DefaultConfig()
	cfg.Headless = headless
	driver, err := browser.NewDriver(cfg, logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	page, err := driver.Open(url)
	if err != nil {
		return err
	}
	defer page.Close()

	html, err := page.Content()
	if err != nil {
		return err
	}

	d, err := dom.ParseString(html)
	if err != nil {
		return fmt.Errorf("parsing page: %w", err)
	}

	out, err := fillDocument(ctx, d, run)
	if err != nil {
		return err
	}
	if run.schemaOnly {
		return nil
	}

	applied, err := page.Apply(out.plan)
	if err != nil {
		return fmt.Errorf("replaying plan: %w", err)
	}

	green.Printf("✓ filled %d inputs, replayed %d steps", out.filled, applied)
	if out.strategy != "" {
		fmt.Printf(" (strategy: %s)", out.strategy)
	}
	if out.submitted {
		fmt.Print(", form submitted")
	}
	fmt.Println()
	return nil
}

// rewrittenPath decides where the rewritten document lands.
func rewrittenPath(path, outDir string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)] + ".filled" + ext
	if outDir != "" {
		return filepath.Join(outDir, name)
	}
	return filepath.Join(filepath.Dir(path), name)
}
