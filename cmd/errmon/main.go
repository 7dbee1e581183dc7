// Command errmon replays recorded errors through the monitor, serves the
// monitoring HTTP API and inspects configuration.
package main

import (
	"github.com/strongdm/ai-errmon/cmd/errmon/commands"
)

func main() {
	commands.Execute()
}
