// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// archiveOutputs moves the engine's per-sample output files into the
// permanent per-chromosome archive directory. An existing file at a
// destination is first set aside with a timestamp suffix, never
// overwritten. Failures here are warnings: the aggregate is already
// durable by the time archiving starts.
func archiveOutputs(files []string, archiveDir string) int {
	if err := os.MkdirAll(archiveDir, 0777); err != nil {
		log.Warnf("archive: %s", err)
		return 0
	}
	moved := 0
	for _, src := range files {
		dst := filepath.Join(archiveDir, filepath.Base(src))
		if _, err := os.Stat(dst); err == nil {
			bak := fmt.Sprintf("%s.bak.%d", dst, time.Now().Unix())
			if err := os.Rename(dst, bak); err != nil {
				log.Warnf("archive: cannot set aside %s: %s", dst, err)
				continue
			}
			log.Printf("archive: existing %s set aside as %s", dst, filepath.Base(bak))
		}
		if err := moveFile(src, dst); err != nil {
			log.Warnf("archive: %s", err)
			continue
		}
		moved++
	}
	return moved
}

// moveFile renames src to dst, falling back to copy-and-remove when
// they are on different filesystems (the working area is node-local
// scratch, the archive usually is not).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst + "~")
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst + "~")
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst + "~")
		return err
	}
	if err := os.Rename(dst+"~", dst); err != nil {
		return err
	}
	return os.Remove(src)
}
