// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// statscmd summarizes a chromosome aggregate table: row counts per
// chromosome and per sample, plus distribution statistics for one
// numeric column if requested.
type statscmd struct {
	column string
}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input aggregate `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	flags.StringVar(&cmd.column, "col", "", "numeric `column` to summarize")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	var input io.ReadCloser
	if *inputFilename == "-" {
		input = io.NopCloser(stdin)
	} else {
		input, err = os.Open(*inputFilename)
		if err != nil {
			return 1
		}
		defer input.Close()
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}

	bufw := bufio.NewWriter(output)
	err = cmd.doStats(input, bufw)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *statscmd) doStats(input io.Reader, output io.Writer) error {
	var ret struct {
		Rows         int
		RowsByChrom  map[string]int
		RowsBySample map[string]int `json:",omitempty"`
		Column       string         `json:",omitempty"`
		Mean         *float64       `json:",omitempty"`
		StdDev       *float64       `json:",omitempty"`
		Median       *float64       `json:",omitempty"`
		P95          *float64       `json:",omitempty"`
	}
	ret.RowsByChrom = map[string]int{}

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 1<<16), 1<<24)
	var header []string
	sampleCol, valueCol := -1, -1
	var values []float64
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if header == nil {
			header = fields
			for i, name := range header {
				if name == "sample" {
					sampleCol = i
				}
				if cmd.column != "" && name == cmd.column {
					valueCol = i
				}
			}
			if cmd.column != "" && valueCol < 0 {
				return fmt.Errorf("input has no column named %q", cmd.column)
			}
			if sampleCol >= 0 {
				ret.RowsBySample = map[string]int{}
			}
			continue
		}
		ret.Rows++
		ret.RowsByChrom[fields[0]]++
		if sampleCol >= 0 && sampleCol < len(fields) {
			ret.RowsBySample[fields[sampleCol]]++
		}
		if valueCol >= 0 && valueCol < len(fields) {
			v, err := strconv.ParseFloat(fields[valueCol], 64)
			if err != nil {
				return fmt.Errorf("row %d: column %q: %w", ret.Rows, cmd.column, err)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(values) > 0 {
		ret.Column = cmd.column
		mean, std := stat.MeanStdDev(values, nil)
		sort.Float64s(values)
		median := stat.Quantile(0.5, stat.Empirical, values, nil)
		p95 := stat.Quantile(0.95, stat.Empirical, values, nil)
		ret.Mean, ret.StdDev, ret.Median, ret.P95 = &mean, &std, &median, &p95
	}

	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(ret)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
