// Package config provides configuration loading and validation for
// tictoc YAML configuration files.
//
// A configuration file tunes instrumentation without code changes:
// output location, memory tracking depth, autosave policy and the
// background peak-memory poller.
//
// Basic usage:
//
//	cfg, err := config.Load("tictoc.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg, err := cfg.Registry(logger)
package config
