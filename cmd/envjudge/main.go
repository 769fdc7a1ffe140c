// envjudge evaluates recorded environment-setup error analyses against
// golden answers: weighted bipartite matching per document, then
// precision/recall/F1 aggregation across the corpus.
//
// Usage:
//
//	envjudge evaluate --results-dir <dir> --golden-dir <dir> [-o <out-dir>]
//	envjudge report [--run <id>]
//	envjudge serve
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
