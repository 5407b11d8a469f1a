// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

func decodeYaml(data []byte) (*RunFile, error) {
	var rf RunFile

	if err := yaml.UnmarshalWithOptions(data, &rf, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYaml, err) //nolint:errorlint
	}

	return &rf, nil
}
