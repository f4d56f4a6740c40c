// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import "fmt"

// chromosomeForTask maps a scheduler task index to a chromosome label:
// indices 1-22 are the autosomes, 23 is chrX, 24 is chrY. Any other
// index means the job array is misconfigured.
func chromosomeForTask(task int) (string, error) {
	switch {
	case task >= 1 && task <= 22:
		return fmt.Sprintf("chr%d", task), nil
	case task == 23:
		return "chrX", nil
	case task == 24:
		return "chrY", nil
	default:
		return "", fmt.Errorf("task index %d does not correspond to a chromosome (want 1..24)", task)
	}
}

// validChromosome reports whether label is one of the chromosome labels
// chromosomeForTask can produce.
func validChromosome(label string) bool {
	for task := 1; task <= 24; task++ {
		if c, _ := chromosomeForTask(task); c == label {
			return true
		}
	}
	return false
}
