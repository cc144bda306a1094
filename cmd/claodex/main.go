// Command claodex routes messages between a claude and a codex agent
// process, per spec.md. See internal/cli for the command surface.
package main

import "github.com/agusx1211/claodex/internal/cli"

func main() {
	cli.Execute()
}
