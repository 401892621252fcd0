// Themis is a compliance policy lifecycle and acknowledgment engine.
//
// It manages versioned compliance policies through sequential approval
// workflows, expands acknowledgment campaigns into per-employee
// obligations, and enforces acknowledgment SLAs with breach detection and
// multi-level escalation.
//
// Usage:
//
//	# Start the engine with default configuration
//	themis run
//
//	# Start with custom configuration file
//	themis run --config /path/to/config.yaml
//
//	# Run one SLA sweep and exit
//	themis sweep
//
//	# Validate configuration and the SLA matrix file
//	themis validate
//
//	# Show version information
//	themis version
package main

func main() {
	Execute()
}
