package main

import (
	"fmt"
	"io"
	"os"

	"nftcate/internal/infra/cidutil"

	"github.com/spf13/cobra"
)

// newCIDCmd computes the CIDv1 the content store assigns to a file, without
// contacting the service.
func newCIDCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "cid <file>",
		Short: "Print the content identifier of a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			loc, err := cidutil.ForBytes(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, loc.String())
			return nil
		},
	}
}
