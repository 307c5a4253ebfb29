package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmmo/realmd/pkg/account"
	"github.com/openmmo/realmd/pkg/api"
	"github.com/openmmo/realmd/pkg/config"
	"github.com/openmmo/realmd/pkg/network"
	"github.com/openmmo/realmd/pkg/protocol"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the realm gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Log); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg config.Config) error {
	startedAt := time.Now()

	accounts, err := account.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer accounts.Close()

	// The handshake ports cannot run without the private key.
	var rsaKey *protocol.RSAKey
	if cfg.Login.Enabled || cfg.Game.Enabled {
		rsaKey, err = protocol.LoadRSAKey(cfg.Server.RSAKeyFile)
		if err != nil {
			return fmt.Errorf("%w (run \"realmd genkey\" first)", err)
		}
	}

	ctx := network.NewServerContext(cfg.Tick(), rsaKey)
	info := protocol.ServerInfo{
		Name:      cfg.Server.Name,
		Version:   version,
		StartedAt: startedAt,
	}

	if cfg.Login.Enabled {
		registry := protocol.NewRegistry()
		registry.Register(protocol.ProtocolIDLogin, protocol.LoginVariant(accounts))
		ctx.AddService(network.ServiceConfig{
			Name:        "login",
			Addr:        cfg.Login.Addr,
			ConnTimeout: cfg.ConnTimeout(),
			Registry:    registry,
			Options: protocol.Options{
				Checksum: protocol.ChecksumAdler32,
				RSA:      rsaKey,
			},
		})
	}

	if cfg.Game.Enabled {
		ctx.AddService(network.ServiceConfig{
			Name:        "game",
			Addr:        cfg.Game.Addr,
			ConnTimeout: cfg.ConnTimeout(),
			PreBind:     protocol.GameVariant(accounts),
			Options: protocol.Options{
				Checksum:             protocol.ChecksumAdler32,
				CompressionLevel:     cfg.Server.CompressionLevel,
				CompressionThreshold: cfg.Server.CompressionThreshold,
				RSA:                  rsaKey,
			},
		})
	}

	if cfg.Status.Enabled {
		registry := protocol.NewRegistry()
		registry.Register(protocol.ProtocolIDStatus, protocol.StatusVariant(info))
		ctx.AddService(network.ServiceConfig{
			Name:        "status",
			Addr:        cfg.Status.Addr,
			ConnTimeout: cfg.ConnTimeout(),
			Registry:    registry,
			Options: protocol.Options{
				RawMessages: true,
			},
		})
	}

	if err := ctx.Start(); err != nil {
		return err
	}

	var admin *api.Server
	if cfg.Admin.Enabled {
		adminCfg := api.DefaultConfig()
		adminCfg.Addr = cfg.Admin.Addr
		admin = api.NewServer(api.Info{
			Name:      cfg.Server.Name,
			Version:   version,
			StartedAt: startedAt,
		}, accounts, adminCfg)
		admin.Start()
	}

	log.Info().Str("name", cfg.Server.Name).Str("version", version).Msg("realmd up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	if admin != nil {
		if err := admin.Stop(); err != nil {
			log.Warn().Err(err).Msg("admin shutdown failed")
		}
	}
	ctx.Stop()
	return nil
}
