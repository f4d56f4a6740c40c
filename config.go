// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// loadConfig reads the optional strsweep.yaml config file from the
// working directory or ~/.config. Command line flags take their
// defaults from the returned config, so anything set here can still be
// overridden per invocation.
func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetConfigName("strsweep")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/")

	v.SetDefault("results_dir", "")
	v.SetDefault("scratch_dir", os.TempDir())
	v.SetDefault("min_aggregate_bytes", 500*1024)
	v.SetDefault("engine_exec", "str-outliers")
	v.SetDefault("engine_script", "")
	v.SetDefault("engine_module", "str_outliers")
	v.SetDefault("interpreter", "python3")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warnf("config: %s", err)
		}
	}
	return v
}
