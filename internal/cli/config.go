package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"redspec/internal/config"
)

type configPayload struct {
	Config    config.Config `json:"config"`
	DropDelay string        `json:"drop_delay"`
	Problem   string        `json:"problem,omitempty"`
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with the password masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			payload := configPayload{
				Config:    cfg.Masked(),
				DropDelay: cfg.DropDelay.String(),
			}
			if err := cfg.Validate(); err != nil {
				payload.Problem = err.Error()
			}

			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config output: %w", err)
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	}
}
