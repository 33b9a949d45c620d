package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	exportlib "github.com/contriboss/exportlib-go"
	"github.com/contriboss/exportlib-go/internal/envconfig"
	"github.com/contriboss/exportlib-go/internal/logutil"
)

// registry holds the linker drivers the command can select.
var registry = exportlib.NewLinkerRegistry()

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if envconfig.Debug {
		level = slog.LevelDebug
	}
	if verbosity, _ := cmd.Flags().GetCount("verbose"); verbosity == 1 {
		level = slog.LevelDebug
	} else if verbosity > 1 {
		level = logutil.LevelTrace
	}
	logger := logutil.NewLogger(cmd.ErrOrStderr(), level)
	logger.Debug("exportlib config", "env", envconfig.Values())
	return logger
}

// envUsage documents the environment variables below the usage text.
func envUsage() string {
	vars := envconfig.AsMap()
	keys := slices.Sorted(maps.Keys(vars))

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "      %-18s %s\n", vars[k].Name, vars[k].Description)
	}
	return sb.String()
}

func resolveLinker(cmd *cobra.Command, fallback string) (exportlib.Linker, error) {
	name, _ := cmd.Flags().GetString("linker")
	if name == "" {
		name = fallback
	}
	if name == "" {
		name = envconfig.Linker
	}
	return registry.Resolve(name)
}

func BuildHandler(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	out, _ := flags.GetString("out")
	outDir, _ := flags.GetString("out-dir")
	implib, _ := flags.GetString("import-library")
	srcs, _ := flags.GetStringArray("src")
	deps, _ := flags.GetStringArray("dep")
	linkArgs, _ := flags.GetStringArray("link-arg")
	prefixes, _ := flags.GetStringArray("prefix")
	patterns, _ := flags.GetStringArray("pattern")
	manifest, _ := flags.GetBool("manifest")
	verify, _ := flags.GetBool("verify")
	keepScratch, _ := flags.GetBool("keep-scratch")

	if name == "" {
		name = strings.TrimSuffix(out, filepath.Ext(out))
	}

	linker, err := resolveLinker(cmd, "")
	if err != nil {
		return err
	}

	// Positional archives are linked whole like --dep.
	for _, arg := range args {
		if exportlib.MatchesExtension(arg, ".a", ".lib") {
			deps = append(deps, arg)
		} else {
			srcs = append(srcs, arg)
		}
	}

	config := &exportlib.PipelineConfig{
		Name:           name,
		Output:         out,
		OutDir:         outDir,
		ImportLibrary:  implib,
		Srcs:           srcs,
		Deps:           deps,
		LinkArgs:       linkArgs,
		ExportPrefixes: prefixes,
		ExportPatterns: patterns,
		ScratchDir:     envconfig.TmpDir,
		KeepScratch:    keepScratch,
		WriteManifest:  manifest,
		Verify:         verify,
	}

	pipeline := exportlib.NewPipeline(linker, newLogger(cmd))
	result, err := pipeline.Run(cmd.Context(), config)
	if err != nil {
		return err
	}

	printTarget(cmd.OutOrStdout(), result.Target)
	return nil
}

func RunHandler(cmd *cobra.Command, args []string) error {
	tf, err := exportlib.LoadTargetFile(args[0])
	if err != nil {
		return err
	}
	configs, err := tf.Configs()
	if err != nil {
		return err
	}
	if envconfig.TmpDir != "" {
		for _, config := range configs {
			if config.ScratchDir == "" {
				config.ScratchDir = envconfig.TmpDir
			}
		}
	}

	linker, err := resolveLinker(cmd, tf.Linker)
	if err != nil {
		return err
	}

	jobs := envconfig.Jobs
	if tf.Jobs > 0 {
		jobs = tf.Jobs
	}
	if cmd.Flags().Changed("jobs") {
		jobs, _ = cmd.Flags().GetInt("jobs")
	}
	keepGoing, _ := cmd.Flags().GetBool("keep-going")

	pipeline := exportlib.NewPipeline(linker, newLogger(cmd))
	results, runErr := pipeline.RunAll(cmd.Context(), configs, jobs, !keepGoing)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Target", "Status", "Exports", "Library"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, result := range results {
		status, library := "ok", ""
		if result.Target != nil {
			library = result.Target.SharedLibrary
		}
		if result.Error != nil {
			status = "failed"
			var stageErr *exportlib.StageError
			if errors.As(result.Error, &stageErr) {
				status = "failed (" + stageErr.Stage.String() + ")"
			}
		}
		table.Append([]string{result.Name, status, strconv.Itoa(len(result.Exports)), library})
	}
	table.Render()

	return runErr
}

func DefHandler(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	out, _ := flags.GetString("out")
	prefixes, _ := flags.GetStringArray("prefix")
	patterns, _ := flags.GetStringArray("pattern")

	config := &exportlib.PipelineConfig{ExportPrefixes: prefixes, ExportPatterns: patterns}
	pred, err := config.ExportPredicate()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	spec, err := exportlib.FilterExports(exportlib.ReadSymbols(r), pred)
	if err != nil {
		return err
	}
	if len(spec) == 0 {
		newLogger(cmd).Warn("no symbols matched the export predicate", "dump", args[0])
	}

	table, err := exportlib.NewExportTable(out, spec)
	if err != nil {
		return err
	}
	_, err = table.WriteTo(cmd.OutOrStdout())
	return err
}

func ExportsHandler(cmd *cobra.Command, args []string) error {
	filters, _ := cmd.Flags().GetStringArray("filter")
	if _, err := exportlib.CompilePatterns(filters...); err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"File", "Symbol"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, path := range args {
		names, err := exportlib.ExportedSymbols(path)
		if err != nil {
			return err
		}
		for _, name := range names {
			if len(filters) > 0 && !exportlib.MatchesPattern(name, filters...) {
				continue
			}
			table.Append([]string{filepath.Base(path), name})
		}
	}
	table.Render()
	return nil
}

func ToolsHandler(cmd *cobra.Command, args []string) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Linker", "Status", "Tools"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, linker := range registry.ListLinkers() {
		checker, ok := linker.(exportlib.ToolChecker)
		if !ok {
			table.Append([]string{linker.Name(), "available", ""})
			continue
		}

		var tools []string
		for _, req := range checker.RequiredTools() {
			if found, ok := req.Resolve(); ok {
				tools = append(tools, found)
			} else {
				tools = append(tools, req.Name+" (missing)")
			}
		}
		status := "available"
		if err := checker.CheckTools(); err != nil {
			status = "missing tools"
		}
		table.Append([]string{linker.Name(), status, strings.Join(tools, ", ")})
	}
	table.Render()
	return nil
}

func CleanHandler(cmd *cobra.Command, args []string) error {
	tf, err := exportlib.LoadTargetFile(args[0])
	if err != nil {
		return err
	}
	configs, err := tf.Configs()
	if err != nil {
		return err
	}
	var errs []error
	for _, config := range configs {
		errs = append(errs, exportlib.Clean(config))
	}
	return errors.Join(errs...)
}

func printTarget(w io.Writer, target *exportlib.ImportTarget) {
	if target == nil {
		return
	}
	fmt.Fprintf(w, "%s\n", target.Name)
	fmt.Fprintf(w, "  shared library:    %s\n", target.SharedLibrary)
	fmt.Fprintf(w, "  interface library: %s\n", target.InterfaceLibrary)
	fmt.Fprintf(w, "  exports:           %d\n", len(target.Exports))
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "exportlib",
		Short: "Link shared libraries that export a filtered set of symbols",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	rootCmd.SetUsageTemplate(rootCmd.UsageTemplate() + envUsage())
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")

	buildCmd := &cobra.Command{
		Use:   "build [INPUT...]",
		Short: "Link one shared library with a filtered export table",
		Args:  cobra.ArbitraryArgs,
		RunE:  BuildHandler,
	}
	buildCmd.Flags().String("name", "", "Target name (default: output name without extension)")
	buildCmd.Flags().StringP("out", "o", "", "Output shared library filename, e.g. mylib.dll")
	buildCmd.Flags().String("out-dir", ".", "Directory the library and import library are published into")
	buildCmd.Flags().String("import-library", "", "Import library filename (default: <out>.if.lib)")
	buildCmd.Flags().StringArray("src", nil, "Direct link input, repeatable")
	buildCmd.Flags().StringArray("dep", nil, "Static library linked whole, repeatable")
	buildCmd.Flags().StringArray("link-arg", nil, "Extra linker argument, repeatable")
	buildCmd.Flags().StringArray("prefix", nil, "Export symbols starting with this prefix, repeatable (default: mlir)")
	buildCmd.Flags().StringArray("pattern", nil, "Export symbols matching this regular expression, repeatable")
	buildCmd.Flags().Bool("manifest", false, "Write <name>.import.yaml next to the outputs")
	buildCmd.Flags().Bool("verify", false, "Check that the library exports exactly the selected symbols")
	buildCmd.Flags().Bool("keep-scratch", false, "Keep the scratch directory for inspection")
	buildCmd.Flags().String("linker", "", "Linker driver (mingw, lld-link, msvc; default: $EXPORTLIB_LINKER or detected)")
	_ = buildCmd.MarkFlagRequired("out")

	runCmd := &cobra.Command{
		Use:   "run TARGETS.yaml",
		Short: "Build every target listed in a target file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunHandler,
	}
	runCmd.Flags().IntP("jobs", "j", 1, "Targets built concurrently (default: file jobs, then $EXPORTLIB_JOBS)")
	runCmd.Flags().Bool("keep-going", false, "Keep building other targets after a failure")
	runCmd.Flags().String("linker", "", "Linker driver, overrides the target file")

	defCmd := &cobra.Command{
		Use:   "def DUMP",
		Short: "Print the export table for a symbol dump (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  DefHandler,
	}
	defCmd.Flags().StringP("out", "o", "", "Library filename for the LIBRARY clause")
	defCmd.Flags().StringArray("prefix", nil, "Export symbols starting with this prefix, repeatable (default: mlir)")
	defCmd.Flags().StringArray("pattern", nil, "Export symbols matching this regular expression, repeatable")
	_ = defCmd.MarkFlagRequired("out")

	exportsCmd := &cobra.Command{
		Use:   "exports FILE...",
		Short: "List the symbols exported by PE or ELF shared libraries",
		Args:  cobra.MinimumNArgs(1),
		RunE:  ExportsHandler,
	}
	exportsCmd.Flags().StringArray("filter", nil, "Only list symbols matching this regular expression, repeatable")

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Show which linker drivers are available",
		Args:  cobra.NoArgs,
		RunE:  ToolsHandler,
	}

	cleanCmd := &cobra.Command{
		Use:   "clean TARGETS.yaml",
		Short: "Remove the published outputs of every target in a target file",
		Args:  cobra.ExactArgs(1),
		RunE:  CleanHandler,
	}

	rootCmd.AddCommand(
		buildCmd,
		runCmd,
		defCmd,
		exportsCmd,
		toolsCmd,
		cleanCmd,
	)

	return rootCmd
}
