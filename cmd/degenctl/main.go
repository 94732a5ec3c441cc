// Command degenctl is the operator and participant tool for the pool ledger:
// it creates signing keys, computes title digests and derived addresses, and
// sends signed API requests.
package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"keygen", "keygen [-out keyfile.json]", runKeygen},
	{"address", "address [-keyfile f | -seed hex]", runAddress},
	{"digest", "digest pool <title> | digest option <pool> <title>", runDigest},
	{"derive", "derive -program <id> pool <title> | option <pool> <title> | entry <option> <participant>", runDerive},
	{"call", "call [-url base] [-keyfile f | -seed hex] <METHOD> <PATH> [json-body]", runCall},
	{"watch", "watch [-url base] [pool ...]", runWatch},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(os.Args[2:]); err != nil {
				pterm.Error.Println(err.Error())
				os.Exit(1)
			}
			return
		}
	}
	pterm.Error.Printfln("unknown command %q", os.Args[1])
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: degenctl <command> [flags] [args]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
}
