// Command indexctl operates a privacy-preserving PII substring index: it
// ingests decrypted field values into the reverse index, answers
// eq/startsWith/endsWith/contains predicate queries, and runs maintenance
// (expiry sweep, stats) against either store backend.
//
// Usage:
//
//	indexctl serve
//	indexctl ingest --field EMAIL --value alice@example.com --ref T1
//	indexctl query --field EMAIL --operator eq --query alice@example.com
//	indexctl sweep
//	indexctl stats
package main

import "os"

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return 0
}
