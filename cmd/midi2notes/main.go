// Package main is the entry point for the midi2notes CLI
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/midi2notes/pkg/api"
	"github.com/james-see/midi2notes/pkg/config"
	"github.com/james-see/midi2notes/pkg/converter"
	"github.com/james-see/midi2notes/pkg/logger"
	"github.com/james-see/midi2notes/pkg/notes"
	"github.com/james-see/midi2notes/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	modeName   string
	logLevel   string
	outputFile string
	formatName string
	sortName   string
	parallel   bool
	playhead   float64
	serverPort int

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midi2notes",
	Short: "Extract note intervals from standard MIDI files",
	Long: `midi2notes pairs note-on and note-off events in a standard MIDI file
and reports every sounded note as pitch, start, duration and track.

Positions are in raw ticks or in seconds following the file's tempo changes.

Examples:
  midi2notes extract song.mid
  midi2notes extract song.mid -m ticks -o notes.csv
  midi2notes summary song.mid
  midi2notes render song.mid --at 12.5 -o frame.png
  midi2notes tui
  midi2notes serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var extractCmd = &cobra.Command{
	Use:   "extract <input.mid>",
	Short: "Write the notes of a MIDI file as JSON or CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var summaryCmd = &cobra.Command{
	Use:   "summary <input.mid>",
	Short: "Print note counts, pitch range and length",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

var renderCmd = &cobra.Command{
	Use:   "render <input.mid>",
	Short: "Render a piano-roll snapshot as PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
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
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/midi2notes/config.json)")
	rootCmd.PersistentFlags().StringVarP(&modeName, "mode", "m", "seconds", "Timing mode (ticks, seconds)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&parallel, "parallel", false, "Process tracks concurrently")

	// extract command
	extractCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .json or .csv file (default stdout)")
	extractCmd.Flags().StringVarP(&formatName, "format", "f", "json", "Output format when writing to stdout (json, csv)")
	extractCmd.Flags().StringVarP(&sortName, "sort", "s", "none", "Sort order (none, start, pitch)")

	// render command
	renderCmd.Flags().Float64Var(&playhead, "at", 0, "Playhead position in the selected mode's unit")
	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .png file path")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file and lets explicitly set flags override it
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = modeName
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if flags.Changed("format") {
		cfg.Format = formatName
	}
	if flags.Changed("sort") {
		cfg.Sort = sortName
	}
	if flags.Changed("port") {
		cfg.Server.Port = serverPort
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	return logger.InitLogger(cfg.LogLevel)
}

func newConverter() (*converter.Converter, error) {
	opts, err := cfg.NotesOptions()
	if err != nil {
		return nil, err
	}
	return converter.New(opts), nil
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func runExtract(cmd *cobra.Command, args []string) error {
	input := args[0]

	conv, err := newConverter()
	if err != nil {
		return err
	}
	order, err := converter.ParseSortOrder(cfg.Sort)
	if err != nil {
		return err
	}

	if outputFile != "" {
		if err := conv.ConvertFile(input, outputFile, order); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Extracted %s -> %s\n", input, outputFile)
		return nil
	}

	format, err := converter.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	ns, err := conv.ExtractFile(input)
	if err != nil {
		return err
	}
	converter.SortNotes(ns, order)
	return converter.Write(cmd.OutOrStdout(), format, ns)
}

func runSummary(cmd *cobra.Command, args []string) error {
	conv, err := newConverter()
	if err != nil {
		return err
	}
	ns, err := conv.ExtractFile(args[0])
	if err != nil {
		return err
	}

	s := notes.Summarize(ns)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:   %s\n", args[0])
	fmt.Fprintf(out, "Mode:   %s\n", conv.Options().Mode)
	fmt.Fprintf(out, "Notes:  %d\n", s.Notes)
	if s.Notes > 0 {
		fmt.Fprintf(out, "Pitch:  %d..%d\n", s.LowPitch, s.HighPitch)
	}
	fmt.Fprintf(out, "End:    %g\n", s.End)
	for track := 0; len(s.Tracks) > 0 && track <= maxTrack(s.Tracks); track++ {
		if n, ok := s.Tracks[track]; ok {
			fmt.Fprintf(out, "Track %d: %d notes\n", track, n)
		}
	}
	return nil
}

func maxTrack(tracks map[int]int) int {
	m := 0
	for t := range tracks {
		m = max(m, t)
	}
	return m
}

func runRender(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".png")

	conv, err := newConverter()
	if err != nil {
		return err
	}
	ns, timing, err := conv.ExtractFileWithTiming(input)
	if err != nil {
		return err
	}
	mode := conv.Options().Mode

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := cfg.Frame().ForTiming(mode, timing).Render(f, ns, playhead, string(mode)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s at %g -> %s\n", input, playhead, output)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run()
}

func runServe(cmd *cobra.Command, args []string) error {
	mode, err := notes.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	srv := api.NewServer()
	srv.Mode = mode
	srv.Parallel = cfg.Parallel
	srv.Frame = cfg.Frame()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting API server on port %d...\n", cfg.Server.Port)
	return srv.Run(cfg.Server.Port)
}
