// Command conductor is the CLI for the tool orchestration runtime: connect
// a fleet of tool servers, run one of the three inference strategies over
// a query, and answer it.
//
// Usage:
//
//	conductor run --provider openai --model gpt-4o-mini --query "what time is it in UTC"
//	conductor validate --config-root .
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/conductorhq/conductor/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Connect tool servers and answer queries."`
	Validate ValidateCmd `cmd:"" help:"Validate mcp/domains/rules configuration without connecting."`

	ConfigRoot string `short:"c" name:"config-root" help:"Config root directory (holds mcp/ and config/rules/)." type:"path" default:"."`
	LogLevel   string `help:"Log level (debug, info, warn, error)." default:"info"`
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("conductor"),
		kong.Description("Conductor - LLM-driven tool orchestration runtime"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
