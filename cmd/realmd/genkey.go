package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmmo/realmd/pkg/protocol"
)

func genkeyCmd() *cobra.Command {
	var (
		out   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate the server RSA key the handshake ports require",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Server.RSAKeyFile
			}

			if !force {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", out)
				}
			}

			key, err := protocol.GenerateRSAKey()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, key.MarshalPEM(), 0o600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}

			fmt.Println("wrote", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "key file path (defaults to the configured rsa_key_file)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}
