// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// runcmd runs the whole pipeline for one chromosome: extract each
// sample's chromosome rows in parallel, invoke the outlier engine once
// over all retained samples, merge its per-sample outputs into the
// chromosome aggregate, and archive the per-sample outputs.
type runcmd struct {
	resultsDir string
	scratchDir string
	task       int
	chrom      string
	minBytes   int64
	parallel   int
	dryRun     bool
	engine     engineConfig

	stdout io.Writer
}

func (cmd *runcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cfg := loadConfig()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.resultsDir, "results-dir", cfg.GetString("results_dir"), "shared results `directory` holding per-sample genotype tables")
	flags.StringVar(&cmd.scratchDir, "scratch-dir", cfg.GetString("scratch_dir"), "node-local scratch `directory` for the ephemeral working area")
	flags.IntVar(&cmd.task, "task", 0, "job array task index `1..24` selecting the chromosome")
	flags.StringVar(&cmd.chrom, "chrom", "", "target `chromosome` label (overrides -task)")
	flags.Int64Var(&cmd.minBytes, "min-aggregate-bytes", cfg.GetInt64("min_aggregate_bytes"), "an existing aggregate at least this `size` is trusted and the run skipped")
	flags.IntVar(&cmd.parallel, "parallel", filterParallelism(), "number of concurrent per-sample filter workers")
	flags.BoolVar(&cmd.dryRun, "dry-run", false, "stop after printing the engine command line; write nothing permanent")
	flags.StringVar(&cmd.engine.Exec, "engine-exec", cfg.GetString("engine_exec"), "outlier engine `executable` name or path")
	flags.StringVar(&cmd.engine.Script, "engine-script", cfg.GetString("engine_script"), "outlier engine script `path`, run via -interpreter")
	flags.StringVar(&cmd.engine.Module, "engine-module", cfg.GetString("engine_module"), "outlier engine `module` name, run via -interpreter -m")
	flags.StringVar(&cmd.engine.Interpreter, "interpreter", cfg.GetString("interpreter"), "`interpreter` for -engine-script / -engine-module")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	cmd.stdout = stdout

	if cmd.resultsDir == "" {
		err = errors.New("results directory not configured (use -results-dir or results_dir in strsweep.yaml)")
		return 1
	}
	chrom := cmd.chrom
	if chrom == "" {
		chrom, err = chromosomeForTask(cmd.task)
		if err != nil {
			return 1
		}
	} else if !validChromosome(chrom) {
		err = fmt.Errorf("invalid chromosome label %q", chrom)
		return 1
	}

	err = cmd.run(chrom, stderr)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *runcmd) run(chrom string, stderr io.Writer) (err error) {
	outlierDir := filepath.Join(cmd.resultsDir, "outliers")
	finalPath := filepath.Join(outlierDir, "STRs_"+chrom+".tsv")

	// A prior complete run makes this one a no-op. A prior output
	// below the size threshold is assumed truncated and rebuilt. A
	// dry run leaves even a truncated output alone.
	if fi, statErr := os.Stat(finalPath); statErr == nil {
		if fi.Size() >= cmd.minBytes {
			log.Printf("%s: already done (%d bytes), skipping", finalPath, fi.Size())
			return nil
		}
		if cmd.dryRun {
			log.Printf("%s: existing output too small (%d < %d bytes), would rebuild", finalPath, fi.Size(), cmd.minBytes)
		} else {
			log.Printf("%s: existing output too small (%d < %d bytes), rebuilding", finalPath, fi.Size(), cmd.minBytes)
			if err := os.Remove(finalPath); err != nil {
				return err
			}
		}
	}

	samples, err := listGenotypeFiles(cmd.resultsDir)
	if err != nil {
		return err
	}

	// The working area embeds chromosome and pid so concurrent
	// sibling runs on the same node cannot collide. It is removed on
	// every exit path; an interrupt triggers the same best-effort
	// cleanup.
	workdir := filepath.Join(cmd.scratchDir, fmt.Sprintf("strsweep_%s_%d", chrom, os.Getpid()))
	if err := os.MkdirAll(workdir, 0700); err != nil {
		return err
	}
	defer os.RemoveAll(workdir)
	defer interruptCleanup(workdir)()

	runlogPath := filepath.Join(workdir, "run.log")
	runlog, err := os.Create(runlogPath)
	if err != nil {
		return err
	}
	prevOut := log.StandardLogger().Out
	log.SetOutput(io.MultiWriter(stderr, runlog))
	defer log.SetOutput(prevOut)
	defer runlog.Close()
	defer func() {
		// Keep the run log if the run fails; the working area
		// holding it is about to disappear.
		if err != nil {
			runlog.Close()
			keep := filepath.Join(outlierDir, "logs", chrom+".log")
			if os.MkdirAll(filepath.Dir(keep), 0777) == nil {
				moveFile(runlogPath, keep)
			}
		}
	}()

	strat := chooseFilterStrategy()
	log.Printf("%s: filtering %d samples (strategy %s, %d workers)", chrom, len(samples), strat.name(), cmd.parallel)
	subsets, err := extractChromosome(samples, chrom, workdir, cmd.parallel, strat)
	if err != nil {
		return err
	}
	log.Printf("%s: %d of %d samples retained", chrom, len(subsets), len(samples))

	var unplaced []string
	for _, ss := range subsets {
		if path, ok := unplacedFor(cmd.resultsDir, ss.sample); ok {
			unplaced = append(unplaced, path)
		}
	}

	engine, err := resolveEngine(cmd.engine)
	if err != nil {
		return err
	}
	if cmd.dryRun {
		fmt.Fprintln(cmd.stdout, strings.Join(engineArgs(engine, subsets, unplaced), " "))
		return nil
	}
	if err := runEngine(engine, subsets, unplaced, workdir); err != nil {
		return err
	}

	consumed, rows, err := aggregateOutputs(workdir, chrom, finalPath)
	if err != nil {
		return err
	}
	log.Printf("%s: wrote %s (%d data rows from %d per-sample outputs)", chrom, finalPath, rows, len(consumed))

	moved := archiveOutputs(consumed, filepath.Join(outlierDir, "per-sample", chrom))
	log.Printf("%s: archived %d per-sample outputs", chrom, moved)
	return nil
}

var exit = os.Exit

// interruptCleanup removes dir and exits if SIGINT or SIGTERM arrives
// before the returned release func is called. release drains the
// handler, so a signal buffered in the same instant the run completes
// cannot exit after the caller has already succeeded.
func interruptCleanup(dir string) (release func()) {
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigch:
			os.RemoveAll(dir)
			exit(1)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigch)
		close(done)
	}
}
