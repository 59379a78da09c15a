// Command spkctl ranks loan applicants and checks pairwise comparison
// matrices from YAML files, without a server or database.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
