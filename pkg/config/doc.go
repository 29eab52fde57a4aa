// Package config loads and validates the floodgate configuration.
//
// Configuration is a single YAML document loaded once at process start:
// server settings, the shared-store selection, the limiter policy, the
// static per-provider quota table, logging, and maintenance scheduling.
// Quota changes require a restart; there is no hot reload.
//
// Loading follows a fixed sequence:
//
//  1. Read and parse the YAML file
//  2. Apply default values
//  3. Apply FLOODGATE_* environment variable overrides (optional)
//  4. Validate the final configuration
//
// Environment variables follow the naming convention
// FLOODGATE_SECTION_FIELD (for example FLOODGATE_STORE_REDIS_ADDR) and
// always take precedence over file values.
package config
