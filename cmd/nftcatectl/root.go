package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

func newRootCmd(out io.Writer) *cobra.Command {
	cl := &client{
		BaseURL:   envOr("NFTCATE_URL", "http://localhost:8080"),
		Token:     envOr("NFTCATE_TOKEN", ""),
		OutFormat: envOr("NFTCATE_OUT", "text"),
		out:       out,
	}
	timeout := defaultTimeout

	root := &cobra.Command{
		Use:           "nftcatectl",
		Short:         "Client for the nftcate certificate service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cl.OutFormat != "json" && cl.OutFormat != "text" {
				return fmt.Errorf("--out must be json or text")
			}
			cl.HTTP = &http.Client{Timeout: timeout}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&cl.BaseURL, "url", cl.BaseURL, "service base URL (env NFTCATE_URL)")
	root.PersistentFlags().StringVar(&cl.Token, "token", cl.Token, "bearer token (env NFTCATE_TOKEN)")
	root.PersistentFlags().StringVar(&cl.OutFormat, "out", cl.OutFormat, "output format: json|text")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "request timeout")

	root.AddCommand(
		newMintCmd(cl),
		newResumeCmd(cl),
		newVerifyCmd(cl),
		newListCmd(cl),
		newIssuerCmd(cl),
		newCIDCmd(out),
	)
	return root
}
