// Command vtabledump extracts Itanium C++ ABI vtables and RTTI from a
// Mach-O binary.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zboralski/vtabledump/internal/config"
	"github.com/zboralski/vtabledump/internal/image"
	glog "github.com/zboralski/vtabledump/internal/log"
	"github.com/zboralski/vtabledump/internal/report"
	"github.com/zboralski/vtabledump/internal/script"
	"github.com/zboralski/vtabledump/internal/vtable"
)

var (
	flagJSON         bool
	flagJSONEnvelope bool
	flagBestEffort   bool
	flagFilter       string
	flagNoColor      bool
	flagVerbose      bool
)

func main() {
	os.Exit(run())
}

// run returns the process exit code directly (0/1/2 per spec.md §6)
// rather than calling os.Exit itself, so main stays a one-liner.
func run() int {
	rootCmd := &cobra.Command{
		Use:   "vtabledump <binary>",
		Short: "Extract Itanium C++ ABI vtables and RTTI from a Mach-O binary",
		Long: `vtabledump walks a Mach-O image's symbol table and dynamic
bindings, decodes the Itanium C++ ABI typeinfo graph rooted at every
_ZTV* vtable symbol, and slices each vtable's method-pointer slots.

Examples:
  vtabledump libfoo.dylib                 # textual report
  vtabledump dump libfoo.dylib --json     # spec JSON array
  vtabledump info libfoo.dylib            # summary counts
  vtabledump browse libfoo.dylib          # interactive TUI`,
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE:                  runDump,
	}
	addDumpFlags(rootCmd)

	dumpCmd := &cobra.Command{
		Use:   "dump <binary>",
		Short: "Extract and print every vtable (default command)",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
	addDumpFlags(dumpCmd)
	rootCmd.AddCommand(dumpCmd)

	infoCmd := &cobra.Command{
		Use:   "info <binary>",
		Short: "Show summary counts for an image",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	rootCmd.AddCommand(infoCmd)

	browseCmd := &cobra.Command{
		Use:   "browse <binary>",
		Short: "Interactively page through extracted vtables",
		Args:  cobra.ExactArgs(1),
		RunE:  runBrowse,
	}
	rootCmd.AddCommand(browseCmd)

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)

	// A load/extraction failure is exit 2 (spec.md §6); everything else —
	// cobra's own argument validation, our usageError, a bad --filter
	// expression — is a usage error, exit 1.
	if _, ok := err.(loadError); ok {
		return 2
	}
	return 1
}

func addDumpFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagJSON, "json", false, "emit the spec JSON array instead of the textual report")
	cmd.Flags().BoolVar(&flagJSONEnvelope, "json-envelope", false, "wrap --json output in a {run_id, binary, generated_at, vtables} envelope")
	cmd.Flags().BoolVar(&flagBestEffort, "best-effort", false, "log and skip per-vtable failures instead of aborting")
	cmd.Flags().StringVar(&flagFilter, "filter", "", "JS boolean expression over {name, numVftables} to keep a record")
	cmd.Flags().BoolVar(&flagNoColor, "no-color", false, "disable styled output")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose debug logging")
}

// usageError marks a bad --filter expression, reported with exit code 1
// per spec.md §6 rather than 2 (binary load failure). Cobra's own
// argument-validation errors are not wrapped in it and also exit 1.
type usageError struct{ error }

// loadError marks a binary parse/load failure, exit code 2.
type loadError struct{ error }

func openAndIndex(path string) (*image.MachOLoader, *image.Index, error) {
	loader, err := image.Open(path)
	if err != nil {
		return nil, nil, loadError{fmt.Errorf("open %s: %w", path, err)}
	}
	idx, err := image.BuildIndex(loader)
	if err != nil {
		loader.Close()
		return nil, nil, loadError{fmt.Errorf("index %s: %w", path, err)}
	}
	return loader, idx, nil
}

func runDump(cmd *cobra.Command, args []string) error {
	glog.Init(flagVerbose)

	cfg, _ := config.Load()
	report.SetNoColor(flagNoColor || !cfg.Color)
	bestEffort := flagBestEffort || cfg.BestEffort
	jsonEnvelope := flagJSONEnvelope || cfg.JSONEnvelope

	path := args[0]
	loader, idx, err := openAndIndex(path)
	if err != nil {
		return err
	}
	defer loader.Close()

	var skipped int
	result, err := vtable.Extract(loader, idx, bestEffort, func(addr uint64, name string, skipErr error) {
		skipped++
		glog.L.Skip(name, addr, skipErr)
		fmt.Fprintf(os.Stderr, "  %s\n", report.StyleError(fmt.Sprintf("skipped %s: %v", name, skipErr)))
	})
	if err != nil {
		return loadError{fmt.Errorf("extract vtables: %w", err)}
	}

	if flagFilter != "" {
		f, err := script.NewFilter(flagFilter)
		if err != nil {
			return usageError{err}
		}
		filtered, err := script.Apply(f, result.Records)
		if err != nil {
			return loadError{fmt.Errorf("apply filter: %w", err)}
		}
		result.Records = filtered
	}

	runID := uuid.NewString()

	if flagJSON {
		if jsonEnvelope {
			return report.WriteJSONEnvelope(os.Stdout, result, runID, path, time.Now())
		}
		return report.WriteJSON(os.Stdout, result)
	}

	fmt.Printf("run %s  %s\n\n", runID, path)
	return report.WriteText(os.Stdout, result)
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]
	loader, idx, err := openAndIndex(path)
	if err != nil {
		return err
	}
	defer loader.Close()

	vtvCount := 0
	for _, sym := range idx.Symbols {
		if strings.HasPrefix(sym.Name, "_ZTV") {
			vtvCount++
		}
	}

	fmt.Printf("Binary:        %s\n", path)
	fmt.Printf("Format:        %s\n", loader.Format())
	fmt.Printf("Symbols:       %d\n", len(idx.Symbols))
	fmt.Printf("Bindings:      %d\n", len(idx.Bindings))
	fmt.Printf("Vtable syms:   %d\n", vtvCount)
	return nil
}
