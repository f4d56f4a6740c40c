// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"github.com/strsweep/strsweep"
)

func main() {
	strsweep.Main()
}
