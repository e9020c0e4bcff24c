// Command timetable groups keyed record feeds into interval series, either
// once from a file or continuously behind an HTTP server.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
