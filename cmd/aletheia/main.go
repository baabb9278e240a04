// Command aletheia turns goals into actionable plans using a remote planning engine.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		fatal(err)
		os.Exit(1)
	}
}
