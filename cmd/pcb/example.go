package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pcb/internal/backend/llvm"
	"pcb/internal/ir"
	"pcb/internal/types"
)

var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Build the foo/main sample program with the builder API",
	Long: `Example builds

    define foo() -> i32 { return 0 }
    define main() -> i32 { return foo() }

through the builder API and prints its dump. With --split main calls foo
in its entry block, branches to a second block that calls foo again, and
returns the first result. With -o the program is also lowered.`,
	Args: cobra.NoArgs,
	RunE: exampleExecution,
}

func init() {
	exampleCmd.Flags().Bool("split", false, "spread main over two blocks")
	exampleCmd.Flags().StringP("output", "o", "", "lower to this file (.o, .s or .ll)")
	exampleCmd.Flags().BoolP("optimize", "O", false, "optimize generated code")
	exampleCmd.Flags().Bool("verbose", false, "dump the LLVM module to stderr")
}

func exampleExecution(cmd *cobra.Command, _ []string) error {
	split, err := cmd.Flags().GetBool("split")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	optimize, err := cmd.Flags().GetBool("optimize")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	c := ir.NewContext(optimize)
	defer c.Destroy()
	if err := buildExample(c, split); err != nil {
		return err
	}
	if !quiet(cmd) {
		if err := c.Dump(cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	if output == "" {
		return nil
	}
	backend := &llvm.Backend{Stdout: cmd.OutOrStdout(), Verbose: cmd.ErrOrStderr()}
	if err := c.Lower(cmd.Context(), backend, output, verbose); err != nil {
		return fmt.Errorf("lower %s: %w", output, err)
	}
	return nil
}

func buildExample(c *ir.Context, split bool) error {
	i32, err := c.IntType(32)
	if err != nil {
		return err
	}
	sig := types.NewFuncType(i32)

	foo, err := c.AddFunction("foo", sig)
	if err != nil {
		return err
	}
	fooStart, err := foo.AddBlock()
	if err != nil {
		return err
	}
	zero, err := fooStart.BuildConstInt(i32, 0)
	if err != nil {
		return err
	}
	if err := fooStart.BuildReturn(zero); err != nil {
		return err
	}

	main, err := c.AddFunction("main", sig)
	if err != nil {
		return err
	}
	mainStart, err := main.AddBlock()
	if err != nil {
		return err
	}
	ret, err := mainStart.BuildCall(foo)
	if err != nil {
		return err
	}
	if !split {
		return mainStart.BuildReturn(ret)
	}

	mainEnd, err := main.AddBlock()
	if err != nil {
		return err
	}
	if err := mainStart.BuildBranch(mainEnd); err != nil {
		return err
	}
	// The second call's result is unused.
	if _, err := mainEnd.BuildCall(foo); err != nil {
		return err
	}
	return mainEnd.BuildReturn(ret)
}
