package main

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newMintCmd(cl *client) *cobra.Command {
	var name, description, institution, student, artifactPath string
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Issue a certificate for a student",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || description == "" || institution == "" || student == "" || artifactPath == "" {
				return fmt.Errorf("--name, --description, --institution, --student and --artifact are required")
			}
			artifact, err := os.ReadFile(artifactPath)
			if err != nil {
				return fmt.Errorf("read artifact: %w", err)
			}

			var body bytes.Buffer
			form := multipart.NewWriter(&body)
			for k, v := range map[string]string{
				"name":        name,
				"description": description,
				"institution": institution,
				"student":     student,
			} {
				if err := form.WriteField(k, v); err != nil {
					return err
				}
			}
			part, err := form.CreateFormFile("image", filepath.Base(artifactPath))
			if err != nil {
				return err
			}
			if _, err := part.Write(artifact); err != nil {
				return err
			}
			if err := form.Close(); err != nil {
				return err
			}

			status, resp, err := cl.do(cmd.Context(), http.MethodPost, "/certificate/mint", form.FormDataContentType(), &body)
			if err != nil {
				return err
			}
			return cl.print("mint", status, resp)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "certificate name")
	cmd.Flags().StringVar(&description, "description", "", "certificate description")
	cmd.Flags().StringVar(&institution, "institution", "", "issuing institution id")
	cmd.Flags().StringVar(&student, "student", "", "recipient student id")
	cmd.Flags().StringVar(&artifactPath, "artifact", "", "certificate image or document")
	return cmd
}

func newResumeCmd(cl *client) *cobra.Command {
	var institution, student, transaction, imageCID, metadataCID string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Record a certificate whose mint was submitted but not confirmed in time",
		RunE: func(cmd *cobra.Command, args []string) error {
			if institution == "" || student == "" || transaction == "" || imageCID == "" || metadataCID == "" {
				return fmt.Errorf("--institution, --student, --transaction, --image-cid and --metadata-cid are required")
			}
			status, resp, err := cl.postJSON(cmd.Context(), "/certificate/resume", map[string]string{
				"institution": institution,
				"student":     student,
				"transaction": transaction,
				"imageCid":    imageCID,
				"metadataCid": metadataCID,
			})
			if err != nil {
				return err
			}
			return cl.print("resume", status, resp)
		},
	}
	cmd.Flags().StringVar(&institution, "institution", "", "issuing institution id")
	cmd.Flags().StringVar(&student, "student", "", "recipient student id")
	cmd.Flags().StringVar(&transaction, "transaction", "", "submitted transaction hash")
	cmd.Flags().StringVar(&imageCID, "image-cid", "", "artifact CID from the failed mint")
	cmd.Flags().StringVar(&metadataCID, "metadata-cid", "", "metadata CID from the failed mint")
	return cmd
}

func newVerifyCmd(cl *client) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <link>",
		Short: "Verify a certificate by its metadata link or CID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, resp, err := cl.postJSON(cmd.Context(), "/certificate/verify", map[string]string{"link": args[0]})
			if err != nil {
				return err
			}
			return cl.print("verify", status, resp)
		},
	}
}

func newListCmd(cl *client) *cobra.Command {
	var owner, issuer string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List certificates held by a student or issued by an institution",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (owner == "") == (issuer == "") {
				return fmt.Errorf("exactly one of --owner or --issuer is required")
			}
			query := url.Values{}
			if owner != "" {
				query.Set("owner", owner)
			} else {
				query.Set("issuer", issuer)
			}
			status, resp, err := cl.do(cmd.Context(), http.MethodGet, "/certificates?"+query.Encode(), "", nil)
			if err != nil {
				return err
			}
			return cl.print("list", status, resp)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "student id")
	cmd.Flags().StringVar(&issuer, "issuer", "", "institution id")
	return cmd
}

func newIssuerCmd(cl *client) *cobra.Command {
	return &cobra.Command{
		Use:   "issuer <address>",
		Short: "Check whether an address is a registered issuer on the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, resp, err := cl.do(cmd.Context(), http.MethodGet, "/ledger/issuers/"+url.PathEscape(args[0]), "", nil)
			if err != nil {
				return err
			}
			return cl.print("issuer", status, resp)
		},
	}
}
