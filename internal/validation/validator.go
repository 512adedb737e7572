// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package validation provides struct validation using go-playground/validator
// v10: a thread-safe singleton instance with the custom rules the event
// protocol needs.
//
// Custom tags:
//   - mediafilename: a safe media filename (no path traversal, no shell
//     metacharacters, max 255 chars)
//   - roomcode: a room code candidate (alphanumeric, max 12 chars)
package validation

import (
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// filenamePattern admits word characters, whitespace, and the punctuation
// that legitimately appears in media filenames.
var filenamePattern = regexp.MustCompile(`^[\w\s\-.()\[\]]+$`)

var roomCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,12}$`)

// ValidFilename reports whether name is a safe media filename: non-empty,
// at most 255 characters, no traversal or separators, no shell
// metacharacters.
func ValidFilename(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, "/\\;&|$`<>\n\r") {
		return false
	}
	return filenamePattern.MatchString(name)
}

// ValidTime reports whether t is a finite, non-negative playback time.
func ValidTime(t float64) bool {
	return !math.IsNaN(t) && !math.IsInf(t, 0) && t >= 0
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		_ = validate.RegisterValidation("mediafilename", func(fl validator.FieldLevel) bool {
			return ValidFilename(fl.Field().String())
		})
		_ = validate.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return roomCodePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates a struct against its validate tags.
func Struct(v any) error {
	return instance().Struct(v)
}
