// Command meowd is the MEOW engine's command-line entrypoint.
package main

import "github.com/ppiankov/meow/internal/cli"

func main() {
	cli.Execute()
}
