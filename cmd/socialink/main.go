package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/socialink/internal/config"
	"github.com/dropDatabas3/socialink/internal/observability/logger"
	"github.com/dropDatabas3/socialink/internal/store/pg"
)

var version = "dev"

func main() {
	// .env es opcional; las variables ya exportadas ganan.
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:           "socialink",
		Short:         "Herramientas del store de identidades sociales",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "ruta al YAML de configuración")

	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(providersCmd(&configPath))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el esquema de social_identity en PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("falta storage.dsn (o SOCIALINK_DSN)")
			}

			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "socialink"})
			defer logger.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			repo, err := pg.Connect(ctx, cfg.Storage.DSN, pg.Options{
				MaxOpenConns: cfg.Storage.Postgres.MaxOpenConns,
				MaxIdleConns: cfg.Storage.Postgres.MaxIdleConns,
			})
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Migrate(ctx); err != nil {
				return err
			}
			logger.L().Info("schema aplicado")
			return nil
		},
	}
}

func providersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Lista los providers habilitados",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			names := cfg.ProviderNames()
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s\t%s\n", name, cfg.DisplayName(name))
			}
			return nil
		},
	}
}
