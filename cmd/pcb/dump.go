package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pcb/internal/buildpipeline"
	"pcb/internal/ir"
	"pcb/internal/irpack"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] file",
	Short: "Parse a pcb IR file and print it back in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE:  dumpExecution,
}

func init() {
	dumpCmd.Flags().Bool("check", false, "also report unterminated blocks and empty functions")
	dumpCmd.Flags().String("pack", "", "write a msgpack snapshot to this path instead of printing")
}

func dumpExecution(cmd *cobra.Command, args []string) error {
	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return err
	}
	packPath, err := cmd.Flags().GetString("pack")
	if err != nil {
		return err
	}

	c, _, err := buildpipeline.Load(cmd.Context(), args[0], false, nil)
	if err != nil {
		return err
	}
	defer c.Destroy()

	if check {
		if err := ir.Validate(c); err != nil {
			return err
		}
	}
	if packPath == "" {
		return c.Dump(cmd.OutOrStdout())
	}

	data, err := irpack.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(packPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if !quiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, %d functions)\n", packPath, len(data), c.NumFunctions())
	}
	return nil
}
