// Command paperchase retrieves keyword matches from a newspaper archive
// and exports the enriched article stream.
package main

import "github.com/paperchase/paperchase/cmd"

func main() {
	cmd.Execute()
}
