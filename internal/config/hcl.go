// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

type hclDocument struct {
	Run *RunFile `hcl:"run,block"`
}

func decodeHcl(data []byte, filename string) (*RunFile, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.Join(ErrInvalidHcl, diags)
	}

	var doc hclDocument

	if diags := gohcl.DecodeBody(file.Body, evalContext(), &doc); diags.HasErrors() {
		return nil, errors.Join(ErrInvalidHcl, diags)
	}

	if doc.Run == nil {
		return nil, fmt.Errorf("%w: %s has no run block", ErrInvalidHcl, filename)
	}

	return doc.Run, nil
}

// evalContext exposes the process environment as env.<NAME>.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)

	for _, kv := range environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}

		vars[k] = cty.StringVal(v)
	}

	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": env,
		},
	}
}
