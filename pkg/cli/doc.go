// Package cli provides shared helpers for the floodgate command line:
// typed command errors and signal-aware contexts.
package cli
