// Command engineplay is a small demo/embedding binary exercising the
// opcore embedding surface end to end: load a Block from a JSON file or
// inline string, evaluate it against a fresh engine, and report the
// final control signal. It is a convenience for exploring the core, not
// a general-purpose shell.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"
	"github.com/wudi/opcore"
	"github.com/wudi/opcore/ast"
)

func main() {
	app := &cli.Command{
		Name:  "engineplay",
		Usage: "load and evaluate opcore operation trees",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "evaluate the Block JSON in <file>",
			},
			&cli.StringFlag{
				Name:    "code",
				Aliases: []string{"c"},
				Usage:   "evaluate inline Block JSON",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "read one Block JSON document per line from a readline prompt",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			switch {
			case cmd.Bool("interactive"):
				return runInteractive()
			case cmd.String("file") != "":
				data, err := os.ReadFile(cmd.String("file"))
				if err != nil {
					return err
				}
				return runOnce(data)
			case cmd.String("code") != "":
				return runOnce([]byte(cmd.String("code")))
			default:
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				return runOnce(data)
			}
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runOnce(data []byte) error {
	block := opcore.BlockLoad(data)
	if block == nil {
		return fmt.Errorf("engineplay: failed to decode block")
	}
	handle := opcore.EngineCreate()
	defer opcore.EngineDestroy(handle)

	signal := opcore.EngineEvalBlock(handle, block)
	fmt.Printf("signal: %s\n", ast.Signal(signal))
	return nil
}

func runInteractive() error {
	rl, err := readline.New("opcore> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	handle := opcore.EngineCreate()
	defer opcore.EngineDestroy(handle)

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		if line == "" {
			continue
		}
		block := opcore.BlockLoad([]byte(line))
		if block == nil {
			continue
		}
		signal := opcore.EngineEvalBlock(handle, block)
		fmt.Printf("signal: %s\n", ast.Signal(signal))
	}
}
