// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	genotypeSuffix   = "-genotype.txt"
	genotypeGzSuffix = "-genotype.txt.gz"
	unplacedSuffix   = "-unplaced.txt"
)

var ErrNoInputFiles = errors.New("no per-sample genotype tables found")

// genotypeFile is one sample's multi-chromosome repeat-length genotype
// table as left in the results directory by the genotyping stage.
type genotypeFile struct {
	sample string
	path   string
	gzip   bool
}

// listGenotypeFiles enumerates <sample>-genotype.txt[.gz] files in
// resultsDir (non-recursive, read-only). The returned set is sorted by
// sample id.
func listGenotypeFiles(resultsDir string) ([]genotypeFile, error) {
	ents, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", resultsDir, err)
	}
	// One table per sample: if both compressed and uncompressed forms
	// exist, the uncompressed one wins, so downstream filter tasks
	// each own exactly one subset path per sample.
	bySample := map[string]genotypeFile{}
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		switch {
		case strings.HasSuffix(name, genotypeGzSuffix):
			sample := strings.TrimSuffix(name, genotypeGzSuffix)
			if _, ok := bySample[sample]; !ok {
				bySample[sample] = genotypeFile{
					sample: sample,
					path:   filepath.Join(resultsDir, name),
					gzip:   true,
				}
			}
		case strings.HasSuffix(name, genotypeSuffix):
			sample := strings.TrimSuffix(name, genotypeSuffix)
			bySample[sample] = genotypeFile{
				sample: sample,
				path:   filepath.Join(resultsDir, name),
			}
		}
	}
	if len(bySample) == 0 {
		return nil, fmt.Errorf("%s: %w", resultsDir, ErrNoInputFiles)
	}
	files := make([]genotypeFile, 0, len(bySample))
	for _, gf := range bySample {
		files = append(files, gf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].sample < files[j].sample })
	return files, nil
}

// unplacedFor returns the path of the sample's auxiliary unplaced-reads
// table, if one exists and has any content. Absence is normal.
func unplacedFor(resultsDir, sample string) (string, bool) {
	path := filepath.Join(resultsDir, sample+unplacedSuffix)
	fi, err := os.Stat(path)
	if err != nil || fi.Size() == 0 {
		return "", false
	}
	return path, true
}
