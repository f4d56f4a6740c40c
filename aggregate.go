// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrAggregationEmpty = errors.New("aggregate has no data rows")

const engineOutputSuffix = ".STRs.tsv"

// aggregateOutputs merges the engine's per-sample output files from
// workdir into the chromosome-level table at finalPath. The header
// comes from the first file in lexicographic order; data rows are
// re-filtered on the chromosome column rather than trusted from the
// engine. The table is written to a temporary path and renamed into
// place only if it gained at least one data row, so finalPath is never
// visible in a partial state. Given the same input files the output is
// byte-identical. The returned consumed list holds only files that
// contributed at least one data row.
func aggregateOutputs(workdir, chrom, finalPath string) (consumed []string, rows int, err error) {
	ents, err := os.ReadDir(workdir)
	if err != nil {
		return nil, 0, err
	}
	var names []string
	for _, ent := range ents {
		if !strings.HasSuffix(ent.Name(), engineOutputSuffix) {
			continue
		}
		if fi, err := ent.Info(); err != nil || fi.Size() == 0 {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0777); err != nil {
		return nil, 0, err
	}
	tmpPath := finalPath + "~"
	out, err := os.Create(tmpPath)
	if err != nil {
		return nil, 0, err
	}
	defer out.Close()
	defer os.Remove(tmpPath)
	bufw := bufio.NewWriterSize(out, 1<<20)

	prefix := []byte(chrom + "\t")
	wroteHeader := false
	for _, name := range names {
		path := filepath.Join(workdir, name)
		n, err := appendRows(bufw, path, prefix, !wroteHeader)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
		wroteHeader = true
		rows += n
		// Files with no chromosome-matching data rows contribute
		// nothing and must not reach the permanent archive; they
		// stay behind and vanish with the working area.
		if n > 0 {
			consumed = append(consumed, path)
		}
	}
	if rows == 0 {
		return nil, 0, fmt.Errorf("%s: %w", chrom, ErrAggregationEmpty)
	}
	if err := bufw.Flush(); err != nil {
		return nil, 0, err
	}
	if err := out.Close(); err != nil {
		return nil, 0, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, 0, err
	}
	return consumed, rows, nil
}

// appendRows copies path's chromosome-matching data rows (and,
// optionally, its header) to w, returning the number of data rows
// copied.
func appendRows(w *bufio.Writer, path string, prefix []byte, withHeader bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<16), 1<<24)
	rows := 0
	for lineno := 0; scanner.Scan(); lineno++ {
		line := scanner.Bytes()
		if lineno == 0 {
			if !withHeader {
				continue
			}
		} else if !bytes.HasPrefix(line, prefix) {
			continue
		} else {
			rows++
		}
		if _, err := w.Write(line); err != nil {
			return 0, err
		}
		if err := w.WriteByte('\n'); err != nil {
			return 0, err
		}
	}
	return rows, scanner.Err()
}
