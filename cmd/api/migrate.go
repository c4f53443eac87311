package main

import (
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-admin/config"
	"github.com/athebyme/gomarket-admin/internal/adapters/logger"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the audit trail tables",
		Long:  `Creates the audit trail schema in the configured store (audit.driver: postgres or sqlite).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
			}
			log, err := logger.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
			if err != nil {
				return fmt.Errorf("ошибка инициализации логгера: %w", err)
			}

			repo, err := openAudit(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			if repo == nil {
				return errors.New("audit store is disabled (audit.driver is none)")
			}
			defer repo.Close()

			if err := repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info("Схема журнала создана", interfaces.LogField{Key: "driver", Value: cfg.Audit.Driver})
			return nil
		},
	}
}
