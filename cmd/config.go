package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pricing-cli/internal/config"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := renderConfig(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// renderConfig marshals c with secrets masked.
func renderConfig(c *config.Config) ([]byte, error) {
	masked := *c
	if masked.Auth.JWTSecret != "" {
		masked.Auth.JWTSecret = redacted
	}
	if masked.Store.DatabaseURL != "" && masked.Store.Driver == "postgres" {
		masked.Store.DatabaseURL = redacted
	}
	if masked.Cache.RedisURL != "" {
		masked.Cache.RedisURL = redacted
	}
	out, err := yaml.Marshal(masked)
	if err != nil {
		return nil, eris.Wrap(err, "marshal config")
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
}
