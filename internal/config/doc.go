// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config reads run files: the optional YAML or HCL documents that
// hold the same settings as the `run` command line flags.
//
// A YAML run file is a flat mapping:
//
//	template: "process {file} &&& archive {file}"
//	pattern: '.*\.dat'
//	workers: 8
//
// An HCL run file holds a single run block. Environment variables are
// available as env.<NAME>:
//
//	run {
//	  taskfile = "${env.HOME}/tasks.txt"
//	  workers  = 8
//	}
package config
