// metatrans — metaobject CSV translator: batch-translates content exports
// through an external translation service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/metatrans/metatrans/config"
	"github.com/metatrans/metatrans/csvfile"
	"github.com/metatrans/metatrans/i18n"
	"github.com/metatrans/metatrans/memory"
	"github.com/metatrans/metatrans/pipeline"
	"github.com/metatrans/metatrans/progress"
	"github.com/metatrans/metatrans/settings"
	"github.com/metatrans/metatrans/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "metatrans",
		Short: "Metaobject CSV translator",
		Long: `metatrans — batch translator for metaobject content CSV exports.

Reads a CSV export with Type, Field, and Default content columns, translates
eligible rows through an external translation service, and writes a new CSV
with a Translated content column appended. Plain-text fields are translated
whole; rich-text fields carry JSON whose "value" leaves are translated while
all other structure is preserved byte for byte.

Commands:
  translate   Translate an export (count, translate, write)
  status      Show what a run would translate, without translating
  init        Create a default .metatrans.yaml config file
  auth        Manage provider API keys

Providers:
  google      Google Translate web endpoint (default, no API key)
  openai      OpenAI-compatible chat completion endpoint (API key required)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Directory holding .metatrans.yaml")

	root.AddCommand(
		newTranslateCmd(),
		newStatusCmd(),
		newInitCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("metatrans version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default .metatrans.yaml config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(rootDir)
			if err != nil {
				return err
			}
			logSuccess("Created %s", path)
			logInfo("Edit it to set input/output paths and the language pair")
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage provider API keys stored in ` + settings.FilePath() + `.

Keys can also be supplied with --api-key or the METATRANS_API_KEY /
OPENAI_API_KEY environment variables, which take priority over the store.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <provider> <key>",
			Short: "Store an API key for a provider",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				providerID := strings.ToLower(args[0])
				if _, ok := translate.DefaultProviders()[providerID]; !ok {
					return fmt.Errorf("unknown provider %q", providerID)
				}
				if err := settings.SetAPIKey(providerID, args[1]); err != nil {
					return err
				}
				logSuccess("Stored API key for %s (%s)", providerID, settings.MaskKey(args[1]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show stored credentials",
			Run: func(cmd *cobra.Command, args []string) {
				store := settings.Load()
				if len(store) == 0 {
					logInfo("No stored credentials (%s)", settings.FilePath())
					return
				}
				for providerID, info := range store {
					fmt.Fprintf(os.Stderr, "  %-10s %s\n", providerID, settings.MaskKey(info.Key))
				}
			},
		},
		&cobra.Command{
			Use:   "remove <provider>",
			Short: "Remove stored credentials for a provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := settings.Remove(strings.ToLower(args[0])); err != nil {
					return err
				}
				logSuccess("Removed credentials for %s", args[0])
				return nil
			},
		},
	)

	return cmd
}

// ---------------------------------------------------------------------------
// translate flags
// ---------------------------------------------------------------------------

type translateArgs struct {
	input        string
	output       string
	sourceLang   string
	targetLang   string
	provider     string
	apiKey       string
	baseURL      string
	model        string
	proxy        string
	maxRetries   int
	requestDelay time.Duration
	memoryPath   string
	noProgress   bool
	dryRun       bool
}

func addTranslateFlags(cmd *cobra.Command, a *translateArgs) {
	cmd.Flags().StringVarP(&a.input, "input", "i", "", "Input CSV file (default from config)")
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output CSV file (default from config)")
	cmd.Flags().StringVar(&a.sourceLang, "source", "", "Source language code (default from config)")
	cmd.Flags().StringVar(&a.targetLang, "target", "", "Target language code (default from config)")
	cmd.Flags().StringVar(&a.provider, "provider", "", "Translation provider: google, openai")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "Provider API key")
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "Provider API base URL override")
	cmd.Flags().StringVar(&a.model, "model", "", "Provider model override")
	cmd.Flags().StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&a.maxRetries, "retries", 0, "Attempts per unit of text (default from config)")
	cmd.Flags().DurationVar(&a.requestDelay, "request-delay", 0, "Base delay before each API request")
	cmd.Flags().StringVar(&a.memoryPath, "memory", "", "Translation memory database path")
	cmd.Flags().BoolVar(&a.noProgress, "no-progress", false, "Disable the progress bar")
}

// mergeConfig overlays flag values onto the loaded config.
func mergeConfig(cfg *config.Config, a translateArgs) {
	if a.input != "" {
		cfg.Input = a.input
	}
	if a.output != "" {
		cfg.Output = a.output
	}
	if a.sourceLang != "" {
		cfg.SourceLang = a.sourceLang
	}
	if a.targetLang != "" {
		cfg.TargetLang = a.targetLang
	}
	if a.provider != "" {
		cfg.Provider = strings.ToLower(a.provider)
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	if a.maxRetries > 0 {
		cfg.MaxRetries = a.maxRetries
	}
	if a.requestDelay > 0 {
		cfg.RequestDelay = config.Duration(a.requestDelay)
	}
	if a.memoryPath != "" {
		cfg.Memory = a.memoryPath
	}
}

// resolveProvider builds the provider config from defaults, the credential
// store, environment variables, and flags (in increasing priority).
func resolveProvider(cfg *config.Config, a translateArgs) (translate.Provider, error) {
	defaults := translate.DefaultProviders()
	prov, ok := defaults[cfg.Provider]
	if !ok {
		return translate.Provider{}, fmt.Errorf("unknown provider %q (valid: google, openai)", cfg.Provider)
	}

	if cfg.Model != "" {
		prov.Model = cfg.Model
	}
	if a.proxy != "" {
		prov.Proxy = a.proxy
	}

	if a.baseURL != "" {
		prov.BaseURL = a.baseURL
	} else if stored := settings.GetBaseURL(prov.ID); stored != "" {
		prov.BaseURL = stored
	}

	// API key lookup order: flag > env > credential store.
	switch {
	case a.apiKey != "":
		prov.APIKey = a.apiKey
	case os.Getenv("METATRANS_API_KEY") != "":
		prov.APIKey = os.Getenv("METATRANS_API_KEY")
	case prov.ID == translate.ProviderOpenAI && os.Getenv("OPENAI_API_KEY") != "":
		prov.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		prov.APIKey = settings.GetAPIKey(prov.ID)
	}

	return prov, nil
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a metaobject CSV export",
		Long: `Translate a metaobject CSV export.

Runs a count pass to size the progress display, then translates eligible
rows in input order and writes the output CSV with the Translated content
column appended. Units that cannot be translated after the retry budget
keep their original text, so a run always produces a complete file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(a)
		},
	}

	addTranslateFlags(cmd, &a)
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Count units and exit without translating")

	return cmd
}

func runTranslate(a translateArgs) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	mergeConfig(cfg, a)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logInfo(i18n.T("Reading input file: %s"), cfg.Input)
	file, err := csvfile.ReadFile(cfg.Input)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf(i18n.T("Input file '%s' not found"), cfg.Input)
		}
		return err
	}

	total := pipeline.Count(file, cfg.Classify)
	logInfo(i18n.T("Found %d text fields to translate"), total)

	if a.dryRun {
		logInfo("Dry run: %d rows, %d units, nothing translated", len(file.Rows), total)
		return nil
	}

	prov, err := resolveProvider(cfg, a)
	if err != nil {
		return err
	}

	logInfo(i18n.T("Starting translation from %s to %s..."), cfg.SourceLang, cfg.TargetLang)
	logInfo("Provider: %s", prov.Name)

	// Progress bar on stderr when interactive; logs stay readable otherwise.
	var bar *progress.Bar
	showBar := !a.noProgress && progress.IsTerminal(os.Stderr)
	if showBar {
		bar = progress.NewBar(os.Stderr)
	}

	tracker := progress.NewTracker(total)
	if bar != nil {
		tracker.OnChange = func(done, total int, preview string) {
			bar.Render(done, total, preview)
		}
	}

	// A warning or error message must not land mid-bar.
	logAround := func(log func(string, ...any)) func(string, ...any) {
		return func(format string, args ...any) {
			if bar != nil {
				bar.Finish()
			}
			log(format, args...)
		}
	}

	tr, err := translate.New(translate.Options{
		Provider:     prov,
		SourceLang:   cfg.SourceLang,
		TargetLang:   cfg.TargetLang,
		MaxRetries:   cfg.MaxRetries,
		RequestDelay: time.Duration(cfg.RequestDelay),
		OnLog:        logAround(logInfo),
		OnError:      logAround(logWarning),
	})
	if err != nil {
		return err
	}

	var store *memory.Store
	if cfg.Memory != "" {
		store, err = memory.Open(cfg.Memory)
		if err != nil {
			return err
		}
		defer store.Close()
		logInfo("Translation memory: %s", store.Path())
	}

	// Ctrl-C aborts the run; no partial output is written.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		if bar != nil {
			bar.Finish()
		}
		logWarning("Interrupted, aborting without writing output...")
		cancel()
	}()

	if bar != nil {
		bar.Render(0, total, "")
	}

	res, err := pipeline.Run(ctx, file, pipeline.Options{
		Classify:   cfg.Classify,
		Translate:  tr.Translate,
		Memory:     store,
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		Tracker:    tracker,
		OnWarn:     logAround(logWarning),
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	logInfo(i18n.T("Writing translated data to: %s"), cfg.Output)
	if err := file.WriteFile(cfg.Output); err != nil {
		return err
	}

	logSuccess(i18n.T("Translation completed successfully!"))
	logInfo(i18n.T("Translated %d/%d text fields"), res.Translated+res.MemoryHits, res.Units)
	if store != nil {
		entries, hits, serr := store.Stats(ctx)
		if serr != nil {
			logWarning("translation memory stats: %v", serr)
		} else {
			logInfo("%s", memorySummary(entries, hits, res.MemoryHits))
		}
	}
	if res.Failed > 0 {
		logWarning("%d units kept their original text after failed retries", res.Failed)
	}

	return nil
}

// ---------------------------------------------------------------------------
// status (read-only: count pass + per-field breakdown)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what a run would translate, without translating",
		Long: `Show the per-field breakdown of a CSV export: how many rows match the
classification rules and how many units of text a run would send to the
translation provider. Does not modify any files or call any API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(a)
		},
	}

	addTranslateFlags(cmd, &a)

	return cmd
}

// fieldStat aggregates counts for one Type/Field combination.
type fieldStat struct {
	typ    string
	field  string
	kind   string
	rows   int
	units  int
}

func runStatus(a translateArgs) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}
	mergeConfig(cfg, a)
	if err := cfg.Validate(); err != nil {
		return err
	}

	file, err := csvfile.ReadFile(cfg.Input)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf(i18n.T("Input file '%s' not found"), cfg.Input)
		}
		return err
	}

	stats, skipped := collectStats(file, cfg.Classify)

	fmt.Fprintf(os.Stderr, "\n%sInput%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  File:       %s\n", cfg.Input)
	fmt.Fprintf(os.Stderr, "  Rows:       %d\n", len(file.Rows))
	fmt.Fprintf(os.Stderr, "  Languages:  %s -> %s\n", cfg.SourceLang, cfg.TargetLang)
	fmt.Fprintf(os.Stderr, "  Provider:   %s\n", cfg.Provider)
	fmt.Fprintln(os.Stderr)

	if len(stats) == 0 {
		logInfo("No translatable rows found")
		return nil
	}

	headers := []string{"Type", "Field", "Kind", "Rows", "Units"}
	var rows [][]string
	total := 0
	for _, s := range stats {
		rows = append(rows, []string{s.typ, s.field, s.kind, fmt.Sprint(s.rows), fmt.Sprint(s.units)})
		total += s.units
	}
	fmt.Fprintln(os.Stderr, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}))

	fmt.Fprintln(os.Stderr)
	logInfo(i18n.T("Found %d text fields to translate"), total)
	if skipped > 0 {
		logInfo("%d rows do not match the classification rules and pass through untranslated", skipped)
	}

	return nil
}

// collectStats groups translatable rows by Type/Field in first-seen order.
func collectStats(file *csvfile.File, cls config.Classify) ([]fieldStat, int) {
	index := make(map[string]int)
	var stats []fieldStat
	skipped := 0

	for _, row := range file.Rows {
		typ := strings.TrimSpace(row[csvfile.ColType])
		field := strings.TrimSpace(row[csvfile.ColField])

		units := pipeline.Count(&csvfile.File{Rows: []csvfile.Row{row}}, cls)
		if units == 0 {
			skipped++
			continue
		}

		kind := "plain"
		if cls.IsRich(field) {
			kind = "rich text"
		}

		key := typ + "\x00" + field
		i, ok := index[key]
		if !ok {
			i = len(stats)
			index[key] = i
			stats = append(stats, fieldStat{typ: typ, field: field, kind: kind})
		}
		stats[i].rows++
		stats[i].units += units
	}

	return stats, skipped
}

// memorySummary formats the translation memory line of the run summary.
func memorySummary(entries, hits int64, runHits int) string {
	return fmt.Sprintf("Translation memory: %d entries, %d hits total (%d this run)",
		entries, hits, runHits)
}

// ---------------------------------------------------------------------------
// Table rendering
// ---------------------------------------------------------------------------

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
