// Scout discovers company contact information: it searches the web, filters
// the results with a language model, crawls the survivors, and streams
// structured records back out.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
