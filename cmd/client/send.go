package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/scanrelay/internal/models"
	"github.com/harrylevesque/scanrelay/internal/upload"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Upload one code without a scanner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			client := upload.NewClient(cfg.Endpoint, upload.WithTimeout(cfg.GetUploadTimeout()))
			out := client.Send(cmd.Context(), args[0])
			if out.Kind != models.OutcomeSuccess {
				var se *upload.StatusError
				if errors.As(out.Err, &se) {
					return fmt.Errorf("endpoint answered %d %s", se.Code, se.Message)
				}
				return out.Err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}
