package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mkatops/ptcamp/internal/audit"
	"github.com/mkatops/ptcamp/internal/catalog"
	"github.com/mkatops/ptcamp/internal/compose"
	"github.com/mkatops/ptcamp/internal/config"
	"github.com/mkatops/ptcamp/internal/logging"
	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/obsdb"
	"github.com/mkatops/ptcamp/internal/observe"
	"github.com/mkatops/ptcamp/internal/registry"
	"github.com/mkatops/ptcamp/internal/session"
	"github.com/mkatops/ptcamp/internal/setup"
	"github.com/mkatops/ptcamp/internal/submit"
	"github.com/mkatops/ptcamp/internal/watch"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compose":
		runCompose(os.Args[2:])
	case "submit":
		runSubmit(os.Args[2:])
	case "create":
		runCreate(os.Args[2:])
	case "rehearse":
		runRehearse(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "init":
		runInit(os.Args[2:])
	case "verify-audit":
		runVerifyAudit(os.Args[2:])
	case "version":
		fmt.Printf("ptcamp %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

const composeUsage = "usage: ptcamp compose [--group <key> | --file <path>] [--owner <name>] [--json]"

func runCompose(args []string) {
	var group, file, owner string
	var jsonOut bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--group":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--group requires a value")
				os.Exit(1)
			}
			i++
			group = args[i]
		case "--file":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--file requires a value")
				os.Exit(1)
			}
			i++
			file = args[i]
		case "--owner":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--owner requires a value")
				os.Exit(1)
			}
			i++
			owner = args[i]
		case "--json":
			jsonOut = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], composeUsage)
			os.Exit(1)
		}
	}

	cfg, stateDir := loadConfig()
	logger := newLogger(cfg)
	reg := buildRegistry(cfg, stateDir)
	if owner == "" {
		owner = cfg.Owner
	}
	if group == "" && file == "" {
		group = "default"
	}

	runner := &submit.Runner{Registry: reg, Logger: logger}
	result, err := runner.Run(context.Background(), submit.Options{
		GroupKey:     group,
		CampaignFile: file,
		Owner:        owner,
		DryRun:       true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "compose: %v\n", err)
		os.Exit(1)
	}
	printResult(result, jsonOut)
}

const submitUsage = `usage: ptcamp submit [--group <key> | --file <path>] [options]
  --owner <name>      program block owner (default: config owner)
  --pb-desc <text>    program block description
  --start-time <t>    desired start time, passed through verbatim
  --dry-run           compose and validate without submitting
  --simulate          run the full lifecycle against the in-memory simulator
  --verify            rehearse against a simulated subarray before submitting
  --json              print the run result as JSON`

func runSubmit(args []string) {
	var group, file, owner, desc, startTime string
	var dryRun, simulate, verify, jsonOut bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--group":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--group requires a value")
				os.Exit(1)
			}
			i++
			group = args[i]
		case "--file":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--file requires a value")
				os.Exit(1)
			}
			i++
			file = args[i]
		case "--owner":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--owner requires a value")
				os.Exit(1)
			}
			i++
			owner = args[i]
		case "--pb-desc":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--pb-desc requires a value")
				os.Exit(1)
			}
			i++
			desc = args[i]
		case "--start-time":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--start-time requires a value")
				os.Exit(1)
			}
			i++
			startTime = args[i]
		case "--dry-run":
			dryRun = true
		case "--simulate":
			simulate = true
		case "--verify":
			verify = true
		case "--json":
			jsonOut = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], submitUsage)
			os.Exit(1)
		}
	}

	cfg, stateDir := loadConfig()
	logger := newLogger(cfg)
	reg := buildRegistry(cfg, stateDir)
	if owner == "" {
		owner = cfg.Owner
	}
	if group == "" && file == "" {
		group = "default"
	}
	if desc == "" {
		desc = cfg.Submission.ProgramBlockDescription
	}
	if startTime == "" {
		startTime = cfg.Submission.DesiredStartTime
	}

	ctx := context.Background()

	if verify && !dryRun {
		_, jobs, err := composeJobs(reg, group, file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify: %v\n", err)
			os.Exit(1)
		}
		sim := session.DefaultSubarray(4)
		harness := &observe.Harness{Session: sim, PTUSE: sim, Logger: logger}
		if _, err := harness.Rehearse(ctx, jobs); err != nil {
			fmt.Fprintf(os.Stderr, "verify: %v\n", err)
			os.Exit(1)
		}
		logger.Info("rehearsal passed", "jobs", len(jobs))
	}

	runner := &submit.Runner{Registry: reg, Logger: logger}
	switch {
	case dryRun:
		// Composition and validation only; no adapter needed.
	case simulate:
		runner.Submitter = obsdb.NewSimulator()
	default:
		cleanup := openLiveRunner(ctx, cfg, stateDir, runner)
		defer cleanup()
	}

	result, err := runner.Run(ctx, submit.Options{
		GroupKey:     group,
		CampaignFile: file,
		Owner:        owner,
		Description:  desc,
		StartTime:    startTime,
		DryRun:       dryRun,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}
	printResult(result, jsonOut)
}

const createUsage = `usage: ptcamp create --target <name> [options]
  --owner <name>        block owner (default: config owner)
  --duration <sec>      observation length (default 60)
  --ants <spec>         antenna spec (default "available")
  --bw <mhz>            beam bandwidth (default 856)
  --issue <id>          issue id, doubles as program block id (default MKAIV-388)
  --description <text>  block description (default: the issue id)
  --simulate            create against the in-memory simulator
  --json                print the result as JSON`

func runCreate(args []string) {
	var target, owner, ants, bw, issue, description string
	var duration int
	var simulate, jsonOut bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--target":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--target requires a value")
				os.Exit(1)
			}
			i++
			target = args[i]
		case "--owner":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--owner requires a value")
				os.Exit(1)
			}
			i++
			owner = args[i]
		case "--duration":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--duration requires a value")
				os.Exit(1)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid --duration value: %s\n", args[i])
				os.Exit(1)
			}
			duration = n
		case "--ants":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--ants requires a value")
				os.Exit(1)
			}
			i++
			ants = args[i]
		case "--bw":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--bw requires a value")
				os.Exit(1)
			}
			i++
			bw = args[i]
		case "--issue":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--issue requires a value")
				os.Exit(1)
			}
			i++
			issue = args[i]
		case "--description":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--description requires a value")
				os.Exit(1)
			}
			i++
			description = args[i]
		case "--simulate":
			simulate = true
		case "--json":
			jsonOut = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], createUsage)
			os.Exit(1)
		}
	}

	if target == "" {
		fmt.Fprintf(os.Stderr, "--target is required\n%s\n", createUsage)
		os.Exit(1)
	}

	cfg, stateDir := loadConfig()
	logger := newLogger(cfg)
	reg := buildRegistry(cfg, stateDir)
	if owner == "" {
		owner = cfg.Owner
	}

	ctx := context.Background()
	runner := &submit.Runner{Registry: reg, Logger: logger}
	if simulate {
		runner.Submitter = obsdb.NewSimulator()
	} else {
		cleanup := openLiveRunner(ctx, cfg, stateDir, runner)
		defer cleanup()
	}

	result, err := runner.CreateSingle(ctx, submit.CreateOptions{
		Owner:        owner,
		Target:       target,
		DurationSec:  duration,
		Ants:         ants,
		BandwidthMHz: bw,
		Issue:        issue,
		Description:  description,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		printJSON(result)
		return
	}
	fmt.Printf("schedule block %s approved\n", result.Handle)
	fmt.Printf("  %s\n", result.Description)
	fmt.Printf("  %s\n", result.InstructionSet)
}

const rehearseUsage = "usage: ptcamp rehearse [--group <key> | --file <path>] [--ants <n>] [--json]"

func runRehearse(args []string) {
	var group, file string
	ants := 4
	var jsonOut bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--group":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--group requires a value")
				os.Exit(1)
			}
			i++
			group = args[i]
		case "--file":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--file requires a value")
				os.Exit(1)
			}
			i++
			file = args[i]
		case "--ants":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--ants requires a value")
				os.Exit(1)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				fmt.Fprintf(os.Stderr, "invalid --ants value: %s\n", args[i])
				os.Exit(1)
			}
			ants = n
		case "--json":
			jsonOut = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], rehearseUsage)
			os.Exit(1)
		}
	}

	cfg, stateDir := loadConfig()
	logger := newLogger(cfg)
	reg := buildRegistry(cfg, stateDir)
	if group == "" && file == "" {
		group = "default"
	}

	camp, jobs, err := composeJobs(reg, group, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rehearse: %v\n", err)
		os.Exit(1)
	}

	sim := session.DefaultSubarray(ants)
	harness := &observe.Harness{Session: sim, PTUSE: sim, Logger: logger}
	reports, err := harness.Rehearse(context.Background(), jobs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rehearse: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		printJSON(reports)
		return
	}
	fmt.Printf("campaign %s: %d jobs rehearsed\n", camp.Name, len(reports))
	for i, rep := range reports {
		target := rep.Target
		if target == "" {
			target = "-"
		}
		fmt.Printf("  job %d: %s %s (%.0fs)\n", i+1, rep.Script, target, rep.DurationSec)
		for _, w := range rep.Warnings {
			fmt.Fprintf(os.Stderr, "warning: job %d: %s\n", i+1, w)
		}
	}
}

const watchUsage = "usage: ptcamp watch [--inbox <dir>] [--once] [--simulate]"

func runWatch(args []string) {
	var inbox string
	var once, simulate bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--inbox":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--inbox requires a value")
				os.Exit(1)
			}
			i++
			inbox = args[i]
		case "--once":
			once = true
		case "--simulate":
			simulate = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], watchUsage)
			os.Exit(1)
		}
	}

	cfg, stateDir := loadConfig()
	if stateDir == "" {
		fmt.Fprintln(os.Stderr, "error: .ptcamp/ directory not found. Run 'ptcamp init' first.")
		os.Exit(1)
	}
	if inbox != "" {
		cfg.Watch.InboxDir = inbox
	}
	logger := newLogger(cfg)
	reg := buildRegistry(cfg, stateDir)

	ctx := context.Background()
	runner := &submit.Runner{Registry: reg, Logger: logger}
	if simulate {
		runner.Submitter = obsdb.NewSimulator()
	} else {
		cleanup := openLiveRunner(ctx, cfg, stateDir, runner)
		defer cleanup()
	}

	opts := submit.Options{
		Owner:       cfg.Owner,
		Description: cfg.Submission.ProgramBlockDescription,
		StartTime:   cfg.Submission.DesiredStartTime,
	}

	if once {
		handler := watch.NewInboxHandler(stateDir, cfg.Watch, runner, opts, logger)
		if err := handler.EnsureDirs(); err != nil {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			os.Exit(1)
		}
		n := handler.ProcessAll(ctx)
		fmt.Printf("processed %d campaign file(s)\n", n)
		return
	}

	d := watch.New(stateDir, cfg, runner, opts, logger)
	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) {
	dir := "."
	if len(args) > 1 {
		fmt.Fprintln(os.Stderr, "usage: ptcamp init [dir]")
		os.Exit(1)
	}
	if len(args) == 1 {
		dir = args[0]
	}

	if err := setup.Run(dir); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(dir)
	fmt.Printf("Initialized .ptcamp/ in %s\n", absDir)
}

const verifyAuditUsage = "usage: ptcamp verify-audit [--path <journal>]"

func runVerifyAudit(args []string) {
	var path string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--path":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--path requires a value")
				os.Exit(1)
			}
			i++
			path = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n%s\n", args[i], verifyAuditUsage)
			os.Exit(1)
		}
	}

	if path == "" {
		cfg, stateDir := loadConfig()
		if stateDir == "" {
			fmt.Fprintln(os.Stderr, "error: .ptcamp/ directory not found. Pass --path or run 'ptcamp init' first.")
			os.Exit(1)
		}
		path = resolvePath(stateDir, cfg.Audit.Path)
	}

	total, valid, err := audit.Verify(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify-audit: %v\n", err)
		os.Exit(1)
	}
	if valid != total {
		fmt.Fprintf(os.Stderr, "%s: %d of %d entries failed verification\n", path, total-valid, total)
		os.Exit(1)
	}
	fmt.Printf("%s: %d entries verified\n", path, total)
}

// printResult renders a run result: the full JSON document or a short
// per-job listing with warnings on stderr.
func printResult(result *submit.Result, jsonOut bool) {
	if jsonOut {
		printJSON(result)
		return
	}

	fmt.Printf("campaign %s: %d jobs (run %s)\n", result.Campaign, len(result.Jobs), result.RunID)
	if result.ProgramBlock != "" {
		fmt.Printf("program block %s approved\n", result.ProgramBlock)
	}
	for _, job := range result.Jobs {
		if job.Handle != "" {
			fmt.Printf("  %s  %s\n", job.Handle, job.Description)
		} else {
			fmt.Printf("  %d.%d  %s\n", job.SequenceIndex, job.OrderIndex, job.Description)
		}
		fmt.Printf("      %s\n", job.InstructionSet)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// composeJobs resolves and composes a campaign the way the submit path does,
// for commands that need the jobs without submitting them.
func composeJobs(reg *registry.Registry, group, file string) (model.Campaign, []model.ResolvedJob, error) {
	camp, err := catalog.Resolve(group, file)
	if err != nil {
		return model.Campaign{}, nil, err
	}
	jobs, err := compose.New(reg).Compose(camp.Sequences)
	if err != nil {
		return model.Campaign{}, nil, err
	}
	return camp, jobs, nil
}

// openLiveRunner wires the observation database and the audit journal into
// the runner. Requires a state directory so the journal has a home. The
// returned cleanup closes both.
func openLiveRunner(ctx context.Context, cfg config.Config, stateDir string, runner *submit.Runner) func() {
	if stateDir == "" {
		fmt.Fprintln(os.Stderr, "error: .ptcamp/ directory not found. Run 'ptcamp init' first.")
		os.Exit(1)
	}

	db, err := obsdb.Open(ctx, cfg.ObsDB.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open obsdb: %v\n", err)
		os.Exit(1)
	}
	store := obsdb.NewStore(db)
	if err := store.Init(ctx); err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "init obsdb schema: %v\n", err)
		os.Exit(1)
	}

	journal, err := audit.Open(resolvePath(stateDir, cfg.Audit.Path), cfg.Audit.MaxSizeBytes)
	if err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "open audit journal: %v\n", err)
		os.Exit(1)
	}

	runner.Submitter = store
	runner.Audit = journal
	return func() {
		journal.Close()
		db.Close()
	}
}

// loadConfig finds the nearest .ptcamp directory and loads its config, or
// falls back to the defaults plus environment overrides.
func loadConfig() (config.Config, string) {
	stateDir := findStateDir()

	var cfg config.Config
	var err error
	if stateDir != "" {
		cfg, err = config.Load(filepath.Join(stateDir, "config.yaml"))
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg, stateDir
}

func findStateDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return config.FindStateDir(dir)
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

func buildRegistry(cfg config.Config, stateDir string) *registry.Registry {
	reg := registry.Builtin()
	if cfg.Registry.OverridesFile == "" {
		return reg
	}
	reg, err := registry.LoadOverrides(reg, resolvePath(stateDir, cfg.Registry.OverridesFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load registry overrides: %v\n", err)
		os.Exit(1)
	}
	return reg
}

// resolvePath keeps absolute paths as they are and resolves relative ones
// against the state directory when there is one.
func resolvePath(stateDir, path string) string {
	if filepath.IsAbs(path) || stateDir == "" {
		return path
	}
	return filepath.Join(stateDir, path)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ptcamp %s — PTUSE campaign composer for MeerKAT schedule blocks

Usage: ptcamp <command> [options]

Campaigns:
  compose [options]     Resolve a campaign and print its jobs
  submit [options]      Submit a campaign under a new program block
  create [options]      Create one standalone schedule block
  rehearse [options]    Drive composed jobs through a simulated subarray

Unattended:
  watch [options]       Run the inbox drop-box daemon
  init [dir]            Scaffold the .ptcamp state directory

Utilities:
  verify-audit          Check the audit journal checksums
  version               Show version
  help                  Show this help

`, version)
}
