package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/cascadegrid/internal/datasource"
	"github.com/vanderheijden86/cascadegrid/pkg/cascade"
	"github.com/vanderheijden86/cascadegrid/pkg/config"
	"github.com/vanderheijden86/cascadegrid/pkg/export"
	"github.com/vanderheijden86/cascadegrid/pkg/metrics"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
	"github.com/vanderheijden86/cascadegrid/pkg/rows"
	"github.com/vanderheijden86/cascadegrid/pkg/ui"
	"github.com/vanderheijden86/cascadegrid/pkg/version"
	"github.com/vanderheijden86/cascadegrid/pkg/view"
	"github.com/vanderheijden86/cascadegrid/pkg/watcher"
)

// flags holds command-line overrides; zero values leave the config alone.
type flags struct {
	configPath string
	seed       string
	rows       int
	blockSize  int
	maxBlocks  int
}

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	exportPath := flag.String("export", "", "Write the option forest to an .svg or .png file and exit")
	statsFlag := flag.Bool("stats", false, "Load the grid, print metrics as JSON and exit")

	var f flags
	flag.StringVar(&f.configPath, "config", "", "Config file (default "+config.ConfigPath()+")")
	flag.StringVar(&f.seed, "seed", "", "Option seed: .json, .yaml or .db file (default builtin forest)")
	flag.IntVar(&f.rows, "rows", 0, "Rows to create at startup")
	flag.IntVar(&f.blockSize, "block-size", 0, "Rows per cached block")
	flag.IntVar(&f.maxBlocks, "max-blocks", 0, "Blocks kept in the window cache")
	flag.Parse()

	if *cpuProfile != "" {
		file, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer file.Close()
		if err := pprof.StartCPUProfile(file); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: cascadegrid [options]")
		fmt.Println("\nA terminal grid of cascading hierarchical selections.")
		flag.PrintDefaults()
		return
	}

	if *versionFlag {
		fmt.Printf("cascadegrid %s\n", version.Version)
		return
	}

	if err := run(f, *exportPath, *statsFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

func run(f flags, exportPath string, stats bool) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, err := buildGrid(ctx, cfg)
	if err != nil {
		return err
	}

	switch {
	case exportPath != "":
		if err := export.SaveForestSnapshot(export.ForestSnapshotOptions{
			Path:  exportPath,
			Title: g.source.String(),
			Tree:  g.tree,
		}); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Printf("Wrote %d options to %s\n", g.tree.Len(), exportPath)
		return nil
	case stats:
		return writeStats(ctx, os.Stdout, g)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("cascadegrid needs a terminal; use --export or --stats for scripted use")
	}

	opts := []ui.Option{ui.WithContext(ctx)}
	if cfg.Seed.Watch && g.source.Type != datasource.SourceTypeBuiltin {
		w, err := startSeedWatch(ctx, cfg.Seed, g.source)
		if err != nil {
			return err
		}
		defer w.Stop()
		opts = append(opts, ui.WithSeedWatch(g.source, w))
	}

	return runTUIProgram(ui.NewModel(g.ctrl, g.view, cfg, opts...))
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f flags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	if f.seed != "" {
		cfg.Seed.Path = f.seed
	}
	if f.rows != 0 {
		cfg.Grid.InitialRows = f.rows
	}
	if f.blockSize != 0 {
		cfg.Grid.BlockSize = f.blockSize
	}
	if f.maxBlocks != 0 {
		cfg.Grid.MaxCachedBlocks = f.maxBlocks
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// startSeedWatch follows the seed file with the configured timings.
func startSeedWatch(ctx context.Context, seed config.SeedConfig, src datasource.Source) (*watcher.Watcher, error) {
	w, err := watcher.New(src.Path,
		watcher.WithPollInterval(seed.PollInterval()),
		watcher.WithDebounce(seed.Debounce()),
	)
	if err != nil {
		return nil, fmt.Errorf("watch seed: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("watch seed: %w", err)
	}
	return w, nil
}

// grid is the wired core: option tree, row store, window view and controller.
type grid struct {
	source datasource.Source
	tree   *options.Tree
	store  *rows.Store
	view   *view.View
	ctrl   *cascade.Controller
}

func buildGrid(ctx context.Context, cfg config.Config) (*grid, error) {
	src, err := datasource.DetectSource(cfg.Seed.Path)
	if err != nil {
		return nil, err
	}
	entries, err := datasource.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load seed %s: %w", src, err)
	}
	tree := options.New()
	if _, err := datasource.Apply(tree, entries); err != nil {
		return nil, fmt.Errorf("load seed %s: %w", src, err)
	}

	schema := cfg.Schema()
	store := rows.New(schema.Width())
	if cfg.Grid.InitialRows > 0 {
		if _, err := store.Append(cfg.Grid.InitialRows); err != nil {
			return nil, err
		}
	}

	v := view.New(store,
		view.WithBlockSize(cfg.Grid.BlockSize),
		view.WithMaxCachedBlocks(cfg.Grid.MaxCachedBlocks),
		view.WithTotal(store.Len()),
	)
	ctrl, err := cascade.New(tree, store, schema, cascade.WithListener(v))
	if err != nil {
		return nil, err
	}
	return &grid{source: src, tree: tree, store: store, view: v, ctrl: ctrl}, nil
}

// statsReport is the --stats JSON document.
type statsReport struct {
	Version      string           `json:"version"`
	Source       string           `json:"source"`
	Options      int              `json:"options"`
	Rows         int              `json:"rows"`
	BlockSize    int              `json:"block_size"`
	CachedBlocks []int            `json:"cached_blocks"`
	Metrics      metrics.Snapshot `json:"metrics"`
}

// writeStats loads the first window so the cache metrics have something to
// report, then prints the report.
func writeStats(ctx context.Context, w io.Writer, g *grid) error {
	if _, err := g.view.RequestWindow(ctx, 0, g.view.BlockSize()); err != nil {
		return err
	}
	report := statsReport{
		Version:      version.Version,
		Source:       g.source.String(),
		Options:      g.tree.Len(),
		Rows:         g.store.Len(),
		BlockSize:    g.view.BlockSize(),
		CachedBlocks: g.view.CachedBlocks(),
		Metrics:      metrics.TakeSnapshot(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set CASCADE_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("CASCADE_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
