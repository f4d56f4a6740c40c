// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/check.v1"
)

type aggregateSuite struct{}

var _ = check.Suite(&aggregateSuite{})

const engineHeader = "chrom\tlocus\tsample\tzscore\n"

func writeEngineOutput(c *check.C, dir, sample string, rowsByChrom map[string]int) string {
	var sb strings.Builder
	sb.WriteString(engineHeader)
	for chrom, n := range rowsByChrom {
		for i := 0; i < n; i++ {
			fmt.Fprintf(&sb, "%s\t%d\t%s\t%.2f\n", chrom, 5000+i, sample, 2.5+float64(i))
		}
	}
	path := filepath.Join(dir, sample+engineOutputSuffix)
	err := os.WriteFile(path, []byte(sb.String()), 0644)
	c.Assert(err, check.IsNil)
	return path
}

func (s *aggregateSuite) TestAggregate(c *check.C) {
	workdir := c.MkDir()
	outdir := c.MkDir()
	writeEngineOutput(c, workdir, "beta", map[string]int{"chr3": 4})
	writeEngineOutput(c, workdir, "alpha", map[string]int{"chr3": 2})
	// mis-tagged rows from the engine must be filtered out again
	writeEngineOutput(c, workdir, "gamma", map[string]int{"chr3": 3, "chr4": 5})
	// zero-length output files are ignored
	err := os.WriteFile(filepath.Join(workdir, "delta"+engineOutputSuffix), nil, 0644)
	c.Assert(err, check.IsNil)
	// a header-only file may donate the header (it sorts first) but
	// contributes no rows, so it must not be consumed
	err = os.WriteFile(filepath.Join(workdir, "aa-empty"+engineOutputSuffix), []byte(engineHeader), 0644)
	c.Assert(err, check.IsNil)
	// unrelated files in the workdir are not merged
	err = os.WriteFile(filepath.Join(workdir, "engine.log"), []byte("chr3\tnoise\n"), 0644)
	c.Assert(err, check.IsNil)

	finalPath := filepath.Join(outdir, "STRs_chr3.tsv")
	consumed, rows, err := aggregateOutputs(workdir, "chr3", finalPath)
	c.Assert(err, check.IsNil)
	c.Check(rows, check.Equals, 9)
	c.Check(consumed, check.DeepEquals, []string{
		filepath.Join(workdir, "alpha"+engineOutputSuffix),
		filepath.Join(workdir, "beta"+engineOutputSuffix),
		filepath.Join(workdir, "gamma"+engineOutputSuffix),
	})

	buf, err := os.ReadFile(finalPath)
	c.Assert(err, check.IsNil)
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	c.Assert(len(lines), check.Equals, 10)
	c.Check(lines[0]+"\n", check.Equals, engineHeader)
	for _, line := range lines[1:] {
		c.Check(strings.HasPrefix(line, "chr3\t"), check.Equals, true)
	}

	// temp file must not survive
	_, err = os.Stat(finalPath + "~")
	c.Check(os.IsNotExist(err), check.Equals, true)
}

func (s *aggregateSuite) TestAggregateDeterministic(c *check.C) {
	workdir := c.MkDir()
	outdir := c.MkDir()
	for i := 0; i < 4; i++ {
		writeEngineOutput(c, workdir, fmt.Sprintf("s%d", i), map[string]int{"chr7": 3 + i})
	}

	read := func(name string) string {
		finalPath := filepath.Join(outdir, name)
		_, _, err := aggregateOutputs(workdir, "chr7", finalPath)
		c.Assert(err, check.IsNil)
		buf, err := os.ReadFile(finalPath)
		c.Assert(err, check.IsNil)
		return string(buf)
	}
	first := read("first.tsv")
	second := read("second.tsv")
	c.Check(second, check.Equals, first)
}

func (s *aggregateSuite) TestAggregateEmpty(c *check.C) {
	workdir := c.MkDir()
	outdir := c.MkDir()
	// header-only outputs contribute nothing
	err := os.WriteFile(filepath.Join(workdir, "alpha"+engineOutputSuffix), []byte(engineHeader), 0644)
	c.Assert(err, check.IsNil)

	finalPath := filepath.Join(outdir, "STRs_chrY.tsv")
	_, _, err = aggregateOutputs(workdir, "chrY", finalPath)
	c.Check(errors.Is(err, ErrAggregationEmpty), check.Equals, true)

	// neither the final path nor the temp file may exist
	_, err = os.Stat(finalPath)
	c.Check(os.IsNotExist(err), check.Equals, true)
	_, err = os.Stat(finalPath + "~")
	c.Check(os.IsNotExist(err), check.Equals, true)
}
