// voicebridge is a terminal client for realtime two-way speech
// translation. See `voicebridge --help` for the command overview.
package main

import (
	"os"

	"github.com/voicebridge/voicebridge/cmd/voicebridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Stderr.WriteString("voicebridge: " + err.Error() + "\n")
		os.Exit(1)
	}
}
