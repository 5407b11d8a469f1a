// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"os"

	"github.com/spf13/afero"
)

// FsFactory is a function that returns an afero filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// environ is stubbed in tests.
var environ = os.Environ
