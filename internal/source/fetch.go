// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
)

var (
	// ErrGetTaskFile is returned when a task file cannot be fetched.
	ErrGetTaskFile = errors.New("failed to get task file")
	// ErrTaskFileNotFound is returned for a local task file path that does not name a file.
	ErrTaskFileNotFound = errors.New("task file not found")
)

// FetchFunc retrieves the content at url.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch retrieves the content of url using go-getter.
// The download directory is removed before returning.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrGetTaskFile
	}

	tmpDir, err := os.MkdirTemp("", "chainrun-getter-*")
	if err != nil {
		return nil, errors.Join(ErrGetTaskFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Join(ErrGetTaskFile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	var fileName string

	// Remote sources are fetched as a directory and the file read from it.
	// https://github.com/hashicorp/go-getter/issues/98
	if ok, err := getter.Detect(req, &getter.FileGetter{}); !ok || err != nil {
		if err != nil {
			return nil, errors.Join(ErrGetTaskFile, err)
		}

		var newURL string

		newURL, fileName = splitFileNameFromGetterURL(url)
		if newURL == "" || fileName == "" {
			return nil, fmt.Errorf("%w: invalid URL format: %s", ErrGetTaskFile, url)
		}

		req.Src = newURL
	}

	if fileName == "" {
		// The getter copies the whole parent directory, so a typo must fail here.
		if err := checkLocalFile(wd, url); err != nil {
			return nil, errors.Join(ErrGetTaskFile, err)
		}

		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrGetTaskFile, err)
	}

	data, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, errors.Join(ErrGetTaskFile, err)
	}

	return data, nil
}

func checkLocalFile(wd, path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(wd, path)
	}

	info, err := os.Stat(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrTaskFileNotFound, path)
	case err != nil:
		return err //nolint:wrapcheck
	case info.IsDir():
		return fmt.Errorf("%w: %s is a directory", ErrTaskFileNotFound, path)
	}

	return nil
}

const (
	goGetterPathSeparator = "//"
	goGetterRefSeparator  = "?"
	minimumGetterParts    = 3 // scheme, host and path
)

// splitFileNameFromGetterURL returns the getter URL of the containing
// directory and the file name. A ref query is carried over to the new URL.
func splitFileNameFromGetterURL(url string) (string, string) {
	var ref string

	parts := strings.Split(url, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last := parts[len(parts)-1]

	if strings.Contains(last, goGetterRefSeparator) {
		refSplit := strings.Split(last, goGetterRefSeparator)
		if len(refSplit) > 1 {
			ref = strings.Join(refSplit[1:], "")
		}

		last = refSplit[0]
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	fileName := filepath.Base(last)
	parts[len(parts)-1] = filepath.Dir(last)

	if parts[len(parts)-1] == "." {
		parts = parts[:len(parts)-1]
	}

	newURL := strings.Join(parts, goGetterPathSeparator)

	if ref != "" {
		newURL += goGetterRefSeparator + ref
	}

	return newURL, fileName
}
