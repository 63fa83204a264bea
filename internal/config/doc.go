// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration.
//
// Precedence is environment (MEDIAMIX_*) over the YAML file over built-in
// defaults. The YAML file is decoded strictly: unknown keys are an error.
// ConfigHolder keeps the current configuration and swaps it atomically on
// reload; callers take a copy per request.
package config
