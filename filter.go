// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/klauspost/pgzip"
)

var ErrNoChromosomeData = errors.New("no sample has any rows for the target chromosome")

// chromSubset is one retained sample's chromosome-specific slice of its
// genotype table, written inside the working area.
type chromSubset struct {
	sample string
	path   string
	rows   int
}

// filterStrategy extracts the header plus all rows whose first column
// equals the target chromosome from one genotype table. One strategy is
// chosen per run, not per sample.
type filterStrategy interface {
	name() string
	extract(src genotypeFile, chrom, dst string) (rows int, err error)
}

// chooseFilterStrategy probes the environment once: grep is fastest for
// an anchored literal match, awk is the next best, and if neither is
// installed we scan in-process. Gzipped inputs always take the
// in-process path regardless of the chosen strategy.
func chooseFilterStrategy() filterStrategy {
	if prog, err := exec.LookPath("grep"); err == nil {
		return &grepStrategy{prog: prog}
	}
	if prog, err := exec.LookPath("awk"); err == nil {
		return &awkStrategy{prog: prog}
	}
	return scanStrategy{}
}

// filterParallelism is the worker count for the extract phase: all CPUs
// minus a reserve of two, but at least one.
func filterParallelism() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// extractChromosome runs one filter task per sample with bounded
// parallelism. Each task writes to a path derived from its own sample
// id, so no two tasks ever touch the same file. Samples whose subset
// has no data rows are dropped and their subset file removed.
func extractChromosome(samples []genotypeFile, chrom, workdir string, parallel int, strat filterStrategy) ([]chromSubset, error) {
	var mtx sync.Mutex
	var retained []chromSubset
	throttle := throttle{Max: parallel}
	for _, gf := range samples {
		gf := gf
		throttle.Acquire()
		go func() {
			defer throttle.Release()
			if throttle.Err() != nil {
				return
			}
			dst := filepath.Join(workdir, gf.sample+"."+chrom+".tsv")
			rows, err := strat.extract(gf, chrom, dst)
			if err != nil {
				throttle.Report(fmt.Errorf("%s: %w", gf.path, err))
				return
			}
			if rows == 0 {
				os.Remove(dst)
				return
			}
			mtx.Lock()
			retained = append(retained, chromSubset{sample: gf.sample, path: dst, rows: rows})
			mtx.Unlock()
		}()
	}
	if err := throttle.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(retained, func(i, j int) bool { return retained[i].path < retained[j].path })
	dedup := retained[:0]
	for i, ss := range retained {
		if i == 0 || ss.path != retained[i-1].path {
			dedup = append(dedup, ss)
		}
	}
	if len(dedup) == 0 {
		return nil, fmt.Errorf("%s: %w", chrom, ErrNoChromosomeData)
	}
	return dedup, nil
}

// countingWriter counts newlines on their way to the underlying writer,
// i.e. rows emitted by an external filter program.
type countingWriter struct {
	w    io.Writer
	rows int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	cw.rows += bytes.Count(p, []byte{'\n'})
	return cw.w.Write(p)
}

// copyHeader reads the header row from src and writes it to dst.
func copyHeader(src genotypeFile, dst io.Writer) error {
	f, err := os.Open(src.path)
	if err != nil {
		return err
	}
	defer f.Close()
	header, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	_, err = io.WriteString(dst, header)
	return err
}

// runFilterProg writes the header itself, then lets an external program
// append the matching data rows.
func runFilterProg(src genotypeFile, dst string, argv []string) (int, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	if err := copyHeader(src, bufw); err != nil {
		return 0, err
	}
	cw := &countingWriter{w: bufw}
	prog := exec.Command(argv[0], argv[1:]...)
	prog.Stdout = cw
	prog.Stderr = os.Stderr
	err = prog.Run()
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		// grep reports "no matches" as exit status 1
		err = nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", argv[0], err)
	}
	if err := bufw.Flush(); err != nil {
		return 0, err
	}
	return cw.rows, f.Close()
}

type grepStrategy struct {
	prog string
}

func (s *grepStrategy) name() string { return "grep" }

func (s *grepStrategy) extract(src genotypeFile, chrom, dst string) (int, error) {
	if src.gzip {
		return scanStrategy{}.extract(src, chrom, dst)
	}
	return runFilterProg(src, dst, []string{s.prog, "^" + chrom + "\t", src.path})
}

type awkStrategy struct {
	prog string
}

func (s *awkStrategy) name() string { return "awk" }

func (s *awkStrategy) extract(src genotypeFile, chrom, dst string) (int, error) {
	if src.gzip {
		return scanStrategy{}.extract(src, chrom, dst)
	}
	return runFilterProg(src, dst, []string{s.prog, "-F", "\t", "-v", "c=" + chrom, "NR > 1 && $1 == c", src.path})
}

// scanStrategy filters in-process. It is the only strategy that can
// read gzipped tables.
type scanStrategy struct{}

func (scanStrategy) name() string { return "scan" }

func (scanStrategy) extract(src genotypeFile, chrom, dst string) (int, error) {
	f, err := os.Open(src.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var in io.Reader = f
	if src.gzip {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("gunzip: %w", err)
		}
		defer gz.Close()
		in = gz
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	bufw := bufio.NewWriterSize(out, 1<<20)

	prefix := []byte(chrom + "\t")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1<<16), 1<<24)
	rows := 0
	for lineno := 0; scanner.Scan(); lineno++ {
		line := scanner.Bytes()
		if lineno > 0 && !bytes.HasPrefix(line, prefix) {
			continue
		}
		if lineno > 0 {
			rows++
		}
		if _, err := bufw.Write(line); err != nil {
			return 0, err
		}
		if err := bufw.WriteByte('\n'); err != nil {
			return 0, err
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if err := bufw.Flush(); err != nil {
		return 0, err
	}
	return rows, out.Close()
}
