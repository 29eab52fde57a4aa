// Floodgate is a distributed admission-control service for metered LLM
// providers.
//
// It enforces, per (user, provider) pair, a rolling 60-second
// request-count quota and a secondary token-budget quota, coordinated
// across any number of stateless server processes through a shared
// store (Redis for multi-host deployments, SQLite for single-host).
//
// Usage:
//
//	# Start the admission server with default configuration
//	floodgate run
//
//	# Start with a custom configuration file
//	floodgate run --config /etc/floodgate/config.yaml
//
//	# Validate a configuration file without starting
//	floodgate validate
//
//	# Show current usage for a caller against a provider
//	floodgate status --user user-123 --provider openai
//
//	# Show version information
//	floodgate version
package main

func main() {
	Execute()
}
