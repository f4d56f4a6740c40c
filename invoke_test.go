// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/check.v1"
)

type invokeSuite struct{}

var _ = check.Suite(&invokeSuite{})

func writeScript(c *check.C, dir, name, body string) string {
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755)
	c.Assert(err, check.IsNil)
	return path
}

func (s *invokeSuite) TestResolveEnginePrecedence(c *check.C) {
	tmpdir := c.MkDir()
	enginePath := writeScript(c, tmpdir, "engine", "exit 0\n")
	scriptPath := writeScript(c, tmpdir, "engine.py", "exit 0\n")
	shPath, err := exec.LookPath("sh")
	c.Assert(err, check.IsNil)

	// executable wins when present
	strat, err := resolveEngine(engineConfig{Exec: enginePath, Script: scriptPath, Interpreter: "sh"})
	c.Assert(err, check.IsNil)
	c.Check(strat.argv, check.DeepEquals, []string{enginePath})

	// script via interpreter when the executable is missing
	strat, err = resolveEngine(engineConfig{Exec: "no-such-engine-xyzzy", Script: scriptPath, Interpreter: "sh"})
	c.Assert(err, check.IsNil)
	c.Check(strat.argv, check.DeepEquals, []string{shPath, scriptPath})

	// module via interpreter as the last resort
	strat, err = resolveEngine(engineConfig{Exec: "no-such-engine-xyzzy", Module: "str_outliers", Interpreter: "sh"})
	c.Assert(err, check.IsNil)
	c.Check(strat.argv, check.DeepEquals, []string{shPath, "-m", "str_outliers"})

	// nothing resolvable
	_, err = resolveEngine(engineConfig{Exec: "no-such-engine-xyzzy"})
	c.Check(err, check.NotNil)
}

func (s *invokeSuite) TestEngineArgs(c *check.C) {
	strat := engineStrategy{argv: []string{"/usr/bin/engine"}}
	subsets := []chromSubset{
		{sample: "alpha", path: "/work/alpha.chr3.tsv"},
		{sample: "beta", path: "/work/beta.chr3.tsv"},
	}
	args := engineArgs(strat, subsets, []string{"/res/alpha-unplaced.txt"})
	c.Check(args, check.DeepEquals, []string{
		"/usr/bin/engine",
		"--genotypes", "/work/alpha.chr3.tsv",
		"--genotypes", "/work/beta.chr3.tsv",
		"--unplaced", "/res/alpha-unplaced.txt",
	})

	args = engineArgs(strat, subsets[:1], nil)
	c.Check(args, check.DeepEquals, []string{"/usr/bin/engine", "--genotypes", "/work/alpha.chr3.tsv"})
}

func (s *invokeSuite) TestRunEngine(c *check.C) {
	tmpdir := c.MkDir()
	workdir := c.MkDir()
	enginePath := writeScript(c, tmpdir, "engine", "echo started\ntouch ok"+engineOutputSuffix+"\n")

	strat, err := resolveEngine(engineConfig{Exec: enginePath})
	c.Assert(err, check.IsNil)
	err = runEngine(strat, nil, nil, workdir)
	c.Assert(err, check.IsNil)

	// output lands in the working area, as does the captured log
	_, err = os.Stat(filepath.Join(workdir, "ok"+engineOutputSuffix))
	c.Check(err, check.IsNil)
	buf, err := os.ReadFile(filepath.Join(workdir, engineLogName))
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Equals, "started\n")
}

func (s *invokeSuite) TestRunEngineFailure(c *check.C) {
	tmpdir := c.MkDir()
	workdir := c.MkDir()
	enginePath := writeScript(c, tmpdir, "engine", "echo oh no >&2\nexit 3\n")

	strat, err := resolveEngine(engineConfig{Exec: enginePath})
	c.Assert(err, check.IsNil)
	err = runEngine(strat, nil, nil, workdir)
	c.Check(errors.Is(err, ErrRunnerFailure), check.Equals, true)
}
