package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"stagehand/internal/adapter/checksum"
	"stagehand/internal/adapter/coordinator"
	"stagehand/internal/adapter/downloader"
	"stagehand/internal/adapter/extractor"
	"stagehand/internal/adapter/logger"
	"stagehand/internal/adapter/platform"
	"stagehand/internal/adapter/process"
	"stagehand/internal/adapter/report"
	"stagehand/internal/adapter/toolchain"
	"stagehand/internal/app"
	"stagehand/internal/config"
	"stagehand/internal/domain"
)

const usage = `stagehand — build orchestration for a multi-platform desktop app

Usage:
  stagehand build [flags]            Bundle sources and cross-compile helpers
  stagehand fetch [flags] [NAME...]  Download, verify and unpack resources
  stagehand sum [flags] FILE...      Print file digests

Running with no subcommand prints this help. Flags without a subcommand
default to "stagehand build" (e.g. stagehand --serial).

Examples:
  # Build everything for this host, one task at a time
  stagehand build --serial

  # Fetch only the 7-Zip resource and print a summary
  stagehand fetch --aggregate sevenzip

  # Checksum a release artifact for the manifest
  stagehand sum --algorithm sha512 dist/app.zip

Settings are read from stagehand.toml when present. Flags override
STAGEHAND_* environment variables, which override the settings file.

Run "stagehand COMMAND --help" for command-specific flags.
`

// printFlags formats flag defaults with -- prefix instead of Go's default single -.
func printFlags(fs *flag.FlagSet) {
	fs.VisitAll(func(f *flag.Flag) {
		isBool := f.DefValue == "false" || f.DefValue == "true"
		if isBool {
			fmt.Fprintf(os.Stderr, "  --%-24s %s\n", f.Name, f.Usage)
		} else {
			label := f.Name + " " + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			fmt.Fprintf(os.Stderr, "  --%-24s %s\n", label, f.Usage)
		}
	})
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	}

	arg := os.Args[1]

	switch arg {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	case "build":
		buildCmd(os.Args[2:])
	case "fetch":
		fetchCmd(os.Args[2:])
	case "sum":
		sumCmd(os.Args[2:])
	default:
		if arg[0] == '-' {
			// Flags without subcommand → treat as "build"
			buildCmd(os.Args[1:])
		} else {
			fmt.Fprintf(os.Stderr, "stagehand: unknown command %q\n\n", arg)
			fmt.Fprint(os.Stderr, usage)
			os.Exit(1)
		}
	}
}

// runFlags are shared by build and fetch.
type runFlags struct {
	fs           *flag.FlagSet
	serial       *bool
	aggregate    *bool
	jobs         *int
	manifest     *string
	settings     *string
	resourceRoot *string
	logLevel     *string
	logFormat    *string
}

func newRunFlags(name string) *runFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &runFlags{
		fs:           fs,
		serial:       fs.Bool("serial", false, "run tasks one at a time in manifest order"),
		aggregate:    fs.Bool("aggregate", false, "wait for every task and print a summary"),
		jobs:         fs.Int("jobs", 0, "max parallel tasks (default: unlimited)"),
		manifest:     fs.String("manifest", "", "build manifest (default: stagehand.hcl)"),
		settings:     fs.String("config", "", "settings file (default: stagehand.toml)"),
		resourceRoot: fs.String("resource-root", "", "resource directory (default: resources)"),
		logLevel:     fs.String("log-level", "", "debug, info, warn or error"),
		logFormat:    fs.String("log-format", "", "console or json"),
	}
}

// setFlags returns the names of flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// env is the wired application for one command.
type env struct {
	host      domain.Host
	mode      coordinator.Mode
	aggregate bool
	svc       *app.Service
	log       *logger.Zerolog
}

func setup(rf *runFlags) (*env, error) {
	set := setFlags(rf.fs)

	settingsPath := platform.ResolveString(*rf.settings, platform.EnvSettings, "", platform.DefaultSettings)
	settings, err := config.LoadSettings(settingsPath, set["config"] || os.Getenv(platform.EnvSettings) != "")
	if err != nil {
		return nil, err
	}

	logCfg := logger.Configure(settings.Log.Level, settings.Log.Format)
	if lvl, ok := logger.ParseLevel(*rf.logLevel); ok {
		logCfg.Level = lvl
	}
	if *rf.logFormat != "" {
		logCfg.Format = *rf.logFormat
	}
	log := logger.New(logCfg)

	plat, err := platform.New()
	if err != nil {
		return nil, err
	}
	host := plat.Host()

	modeName := platform.ResolveString("", platform.EnvMode, settings.Mode, coordinator.Parallel.String())
	if set["serial"] {
		modeName = coordinator.Parallel.String()
		if *rf.serial {
			modeName = coordinator.Serial.String()
		}
	}
	mode, err := coordinator.ParseMode(modeName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", platform.EnvMode, err)
	}

	var aggregateFlag *bool
	if set["aggregate"] {
		aggregateFlag = rf.aggregate
	}
	aggregate, err := platform.ResolveBool(aggregateFlag, platform.EnvAggregate, settings.Aggregate)
	if err != nil {
		return nil, err
	}

	var jobsFlag *int
	if set["jobs"] {
		jobsFlag = rf.jobs
	}
	jobs, err := platform.ResolveCount(jobsFlag, platform.EnvJobs, settings.Jobs, 0)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}

	resourceRoot := platform.ResolveString(*rf.resourceRoot, platform.EnvResourceRoot, settings.ResourceRoot, platform.DefaultResourceRoot)
	platformDir, err := platform.PlatformDir(host.OS)
	if err != nil {
		return nil, err
	}
	resourceDir, err := plat.ResourceDir(resourceRoot)
	if err != nil {
		return nil, err
	}

	manifestPath := platform.ResolveString(*rf.manifest, platform.EnvManifest, settings.Manifest, platform.DefaultManifest)
	manifest, err := config.LoadManifest(plat.Abs(manifestPath), config.Variables{
		Host:         host,
		PlatformDir:  platformDir,
		ResourceRoot: resourceRoot,
		ResourceDir:  resourceDir,
	})
	if err != nil {
		return nil, err
	}

	log.Debug("configuration resolved",
		"manifest", manifestPath,
		"settings", settingsPath,
		"workdir", plat.WorkDir(),
		"resources", resourceDir,
		"host", host.OS,
		"arch", host.Arch,
		"mode", mode.String(),
		"jobs", jobs,
	)

	tools := settings.Toolchain
	sup := process.NewSupervisor(log)
	svc := app.NewService(
		manifest,
		coordinator.New(coordinator.Options{Jobs: jobs}, log),
		toolchain.NewEsbuild(sup, tools.Esbuild, log),
		toolchain.NewGoCompiler(sup, tools.Go, log),
		toolchain.NewFileStager(log),
		downloader.NewHTTPFetcher(http.DefaultClient, log),
		extractor.NewArchiveInstaller(sup, extractor.Tools{Tar: tools.Tar, Unzip: tools.Unzip, SevenZip: tools.SevenZip}, log),
		log,
	)

	return &env{host: host, mode: mode, aggregate: aggregate, svc: svc, log: log}, nil
}

func buildCmd(args []string) {
	rf := newRunFlags("stagehand build")
	rf.fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Bundle application sources and cross-compile the helpers this host builds.

Usage:
  stagehand build [flags]

Tasks run in parallel unless --serial is given. Without --aggregate the
first failure ends the command while other tasks finish in the background.

Flags:`)
		printFlags(rf.fs)
	}
	if err := rf.fs.Parse(args); err != nil {
		fatal(err)
	}
	if rf.fs.NArg() > 0 {
		fatal(fmt.Errorf("build takes no arguments, got %q", rf.fs.Args()))
	}

	e, err := setup(rf)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := e.svc.Build(ctx, e.host, app.RunOptions{Mode: e.mode, Aggregate: e.aggregate})
	finish("build", rep, err)
}

func fetchCmd(args []string) {
	rf := newRunFlags("stagehand fetch")
	rf.fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Download, verify and unpack the resources this host needs.

Usage:
  stagehand fetch [flags] [NAME...]

A resource already on disk with the expected digest is not downloaded
again. A file that fails verification is left in place and reported.

Flags:`)
		printFlags(rf.fs)
	}
	if err := rf.fs.Parse(args); err != nil {
		fatal(err)
	}

	e, err := setup(rf)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := e.svc.Acquire(ctx, e.host, app.RunOptions{Mode: e.mode, Aggregate: e.aggregate, Names: rf.fs.Args()})
	finish("fetch", rep, err)
}

// finish prints the summary when there is one and exits non-zero on error.
func finish(title string, rep *coordinator.Report, err error) {
	if rep != nil {
		_ = report.NewSummary(os.Stderr).Write(os.Stderr, title, rep)
	}
	if err != nil {
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			fmt.Fprintf(os.Stderr, "stagehand: %s is corrupt or tampered with; delete it and retry\n", ie.Path)
		}
		fatal(err)
	}
}

func sumCmd(args []string) {
	fs := flag.NewFlagSet("stagehand sum", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Print the digest of each file, for pasting into a manifest.

Usage:
  stagehand sum [flags] FILE...

Supported algorithms: %s

Flags:
`, strings.Join(checksum.Algorithms(), ", "))
		printFlags(fs)
	}
	algorithm := fs.String("algorithm", checksum.SHA512, "digest algorithm")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	log := logger.New(logger.Configure("", ""))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	failed := false
	for _, path := range fs.Args() {
		digest, err := checksum.File(path, *algorithm)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedAlgorithm) {
				fatal(err)
			}
			log.Error("checksum failed", "path", path, "err", err)
			failed = true
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", digest, path)
	}
	w.Flush()
	if failed {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "stagehand: %v\n", err)
	os.Exit(1)
}
