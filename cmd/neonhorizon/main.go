// Package main is the entry point for the neonhorizon CLI
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/james-see/neonhorizon/pkg/api"
	"github.com/james-see/neonhorizon/pkg/batch"
	"github.com/james-see/neonhorizon/pkg/catalog"
	"github.com/james-see/neonhorizon/pkg/config"
	"github.com/james-see/neonhorizon/pkg/encoder"
	"github.com/james-see/neonhorizon/pkg/generator"
	"github.com/james-see/neonhorizon/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	catalogPath string
	logLevel    string

	outputFile string
	keyName    string
	tempo      int
	bassFlag   string
	melodyFlag string
	dumpEvents bool

	outputDir    string
	manifestPath string
	archivePath  string
	author       string
	workers      int

	serverPort int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "neonhorizon",
	Short: "Generate a deterministic catalog of synth MIDI pieces",
	Long: `neonhorizon renders short four-track pieces (drums, bass, pads, lead)
from closed-form rhythm and melody equations over a fixed set of keys,
tempi and formulas.

Examples:
  neonhorizon generate --key A_Minor --tempo 85 --bass 4,2 --melody 5,0.1
  neonhorizon batch --out library --workers 8
  neonhorizon inspect "Synth_A_Minor_85_Bass(4, 2)_Mel(5, 0.1).mid"
  neonhorizon catalog
  neonhorizon tui
  neonhorizon serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render a single piece",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Render the whole catalog, write the manifest and archive it",
	Args:  cobra.NoArgs,
	RunE:  runBatch,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Show tempo, programs and note counts of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the catalog dimensions",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "YAML catalog overriding the built-in tables (env NEON_CATALOG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")

	// generate command
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path (default: catalog file name)")
	generateCmd.Flags().StringVarP(&keyName, "key", "k", "A_Minor", "Key name from the catalog")
	generateCmd.Flags().IntVarP(&tempo, "tempo", "t", 85, "Tempo in BPM")
	generateCmd.Flags().StringVarP(&bassFlag, "bass", "b", "4,2", "Bass formula period,duty")
	generateCmd.Flags().StringVarP(&melodyFlag, "melody", "m", "5,0.1", "Melody formula amplitude,frequency")
	generateCmd.Flags().BoolVar(&dumpEvents, "dump", false, "Print every note event to stdout")

	// batch command
	batchCmd.Flags().StringVar(&outputDir, "out", "", "Output directory (env NEON_OUTPUT_DIR)")
	batchCmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest CSV path (env NEON_MANIFEST)")
	batchCmd.Flags().StringVar(&archivePath, "archive", "", "ZIP archive path (env NEON_ARCHIVE)")
	batchCmd.Flags().StringVar(&author, "author", "", "Author label for the manifest (env NEON_AUTHOR)")
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel workers (env NEON_WORKERS)")

	// tui command
	tuiCmd.Flags().StringVar(&outputDir, "out", "", "Output directory (env NEON_OUTPUT_DIR)")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (env PORT)")

	// Add commands
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}
	logger = cfg.NewLogger()
	slog.SetDefault(logger)
	return nil
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.CatalogPath)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	bass, err := catalog.ParseBass(bassFlag)
	if err != nil {
		return err
	}
	melody, err := catalog.ParseMelody(melodyFlag)
	if err != nil {
		return err
	}

	key, ok := cat.Key(keyName)
	if !ok {
		return fmt.Errorf("unknown key %q", keyName)
	}
	params := generator.ParameterSet{KeyName: key.Name, Root: key.Root, Tempo: tempo, Bass: bass, Melody: melody}
	if _, err := cat.Lookup(keyName, tempo, bass, melody); err != nil {
		logger.Warn("parameters are outside the catalog", "error", err)
	}

	gen := generator.Default()
	piece, err := gen.Generate(params)
	if err != nil {
		return err
	}

	output := outputFile
	if output == "" {
		output = catalog.Filename(params)
	}
	report, err := encoder.NewMIDIWriter(gen.Theory(), logger).WriteFile(piece, output)
	if err != nil {
		return err
	}

	if dumpEvents {
		if err := generator.Dump(cmd.OutOrStdout(), piece); err != nil {
			return err
		}
	}
	fmt.Printf("Generated %s (drums %d, bass %d, pads %d, lead %d notes)\n",
		output, len(piece.Drums), len(piece.Bass), len(piece.Pads), len(piece.Lead))
	if n := report.Total(); n > 0 {
		fmt.Printf("Note: %d onsets were clamped to the previous release\n", n)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	opts := batch.Options{
		Catalog:      cat,
		OutputDir:    firstNonEmpty(outputDir, cfg.OutputDir),
		ManifestPath: firstNonEmpty(manifestPath, cfg.ManifestPath),
		ArchivePath:  firstNonEmpty(archivePath, cfg.ArchivePath),
		Author:       firstNonEmpty(author, cfg.Author),
		Workers:      cfg.Workers,
		Logger:       logger,
	}
	if workers > 0 {
		opts.Workers = workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("--- STARTING DETERMINISTIC FACTORY ---")
	res, err := batch.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("TOTAL: %d assets created.\n", res.Written())
	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", f)
	}
	if res.Archive != "" {
		fmt.Printf("DONE. Archive: %s\n", res.Archive)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d of %d pieces failed", len(res.Failures), cat.Size())
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	input := args[0]
	if encoder.DetectFormat(input) != encoder.FormatMIDI {
		logger.Warn("file extension is not .mid", "file", input)
	}

	dec, err := encoder.ReadMIDIFile(input)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", filepath.Base(input))
	fmt.Printf("  resolution: %d ticks/quarter\n", dec.Resolution)
	fmt.Printf("  tempo:      %.2f BPM (%d us/quarter)\n", dec.Tempo, dec.MicrosecondsPerQuarter)
	for i, tr := range dec.Tracks {
		program := "-"
		if tr.Program >= 0 {
			program = fmt.Sprintf("%d", tr.Program)
		}
		channel := "-"
		if tr.Channel >= 0 {
			channel = fmt.Sprintf("%d", tr.Channel+1)
		}
		fmt.Printf("  track %d %-6s channel %-2s program %-3s notes %d\n", i, tr.Name, channel, program, len(tr.Notes))
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	if params, err := cat.ParseFilename(filepath.Base(input)); err == nil {
		fmt.Printf("  catalog:    key %s, tempo %d, bass %s, melody %s\n", params.KeyName, params.Tempo, params.Bass, params.Melody)
	}
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	fmt.Println("Keys:")
	for _, k := range cat.Keys {
		fmt.Printf("  %-8s root %d\n", k.Name, k.Root)
	}
	fmt.Printf("Tempi:  %v\n", cat.Tempi.Values())
	fmt.Print("Bass:  ")
	for _, b := range cat.Bass {
		fmt.Printf(" %s", b)
	}
	fmt.Print("\nMelody:")
	for _, m := range cat.Melody {
		fmt.Printf(" %s", m)
	}
	fmt.Printf("\nTotal:  %d pieces\n", cat.Size())
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	return tui.Run(cat, generator.Default(), firstNonEmpty(outputDir, cfg.OutputDir))
}

func runServe(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	port := cfg.Port
	if serverPort > 0 {
		port = serverPort
	}
	fmt.Printf("Starting API server on port %d...\n", port)
	return api.StartServer(port, api.NewServer(cat, generator.Default(), logger))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
