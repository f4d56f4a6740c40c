// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrRunnerFailure = errors.New("analysis engine failed")

const engineLogName = "engine.log"

// engineConfig is the configured set of ways the outlier engine might
// be installed on a node.
type engineConfig struct {
	Exec        string // executable name or path
	Script      string // script path, run via Interpreter
	Module      string // module name, run via Interpreter -m
	Interpreter string
}

// engineStrategy is the command prefix for the one engine form found to
// be runnable on this node. Resolution happens once per run.
type engineStrategy struct {
	argv []string
}

func (s engineStrategy) String() string { return strings.Join(s.argv, " ") }

// resolveEngine probes for the engine in order of preference: a
// directly executable program, then a script through its interpreter,
// then a named module through the same interpreter.
func resolveEngine(cfg engineConfig) (engineStrategy, error) {
	if cfg.Exec != "" {
		if prog, err := exec.LookPath(cfg.Exec); err == nil {
			return engineStrategy{argv: []string{prog}}, nil
		}
	}
	if cfg.Script != "" && cfg.Interpreter != "" {
		if _, err := os.Stat(cfg.Script); err == nil {
			if interp, err := exec.LookPath(cfg.Interpreter); err == nil {
				return engineStrategy{argv: []string{interp, cfg.Script}}, nil
			}
		}
	}
	if cfg.Module != "" && cfg.Interpreter != "" {
		if interp, err := exec.LookPath(cfg.Interpreter); err == nil {
			return engineStrategy{argv: []string{interp, "-m", cfg.Module}}, nil
		}
	}
	return engineStrategy{}, fmt.Errorf("analysis engine not found (tried exec %q, script %q, module %q via %q)",
		cfg.Exec, cfg.Script, cfg.Module, cfg.Interpreter)
}

// engineArgs builds the engine command line: one --genotypes flag per
// retained subset, then the unplaced tables, if any, after a single
// --unplaced flag.
func engineArgs(strat engineStrategy, subsets []chromSubset, unplaced []string) []string {
	args := append([]string(nil), strat.argv...)
	for _, ss := range subsets {
		args = append(args, "--genotypes", ss.path)
	}
	if len(unplaced) > 0 {
		args = append(args, "--unplaced")
		args = append(args, unplaced...)
	}
	return args
}

// runEngine invokes the engine exactly once, with workdir as its
// current directory so its per-sample outputs land there. Combined
// output goes to <workdir>/engine.log; on failure the log is echoed so
// it survives workdir cleanup.
func runEngine(strat engineStrategy, subsets []chromSubset, unplaced []string, workdir string) error {
	logpath := filepath.Join(workdir, engineLogName)
	logf, err := os.Create(logpath)
	if err != nil {
		return err
	}
	defer logf.Close()

	args := engineArgs(strat, subsets, unplaced)
	log.Printf("invoking engine: %s", strings.Join(args, " "))
	engine := exec.Command(args[0], args[1:]...)
	engine.Dir = workdir
	engine.Stdout = logf
	engine.Stderr = logf
	err = engine.Run()
	logf.Close()
	if err != nil {
		if buf, rerr := os.ReadFile(logpath); rerr == nil && len(buf) > 0 {
			log.Errorf("engine output:\n%s", buf)
		}
		return fmt.Errorf("%w: %s", ErrRunnerFailure, err)
	}
	return nil
}
