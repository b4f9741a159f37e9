// Command voyancectl runs operator tasks against the voyance database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"voyanceBack/internal/config"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/schema"
	"voyanceBack/internal/services"
	"voyanceBack/internal/timeutil"
	"voyanceBack/utils"
)

var (
	configPath string
	logger     = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

var rootCmd = &cobra.Command{
	Use:           "voyancectl",
	Short:         "Operator tasks for the voyance backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

// migrateCmd applies the embedded schema. Every statement is idempotent.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, cfg config.Config, db *sql.DB) error {
			for i, stmt := range schema.Statements() {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements\n", len(schema.Statements()))
			return nil
		})
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Provision an admin account",
	Long: `Provision an admin account.

The password is read from --password or, when empty, from ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		return withDB(cmd.Context(), func(ctx context.Context, cfg config.Config, db *sql.DB) error {
			tokens, err := utils.NewManager(cfg.Session.Secret)
			if err != nil {
				return err
			}
			auth := &services.AuthService{
				DB:           db,
				UserRepo:     &repositories.UserRepository{DB: db},
				TokenManager: tokens,
				Logger:       logger,
			}
			user, err := auth.CreateAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %d created for %s\n", user.ID, user.Email)
			return nil
		})
	},
}

var expirePacksCmd = &cobra.Command{
	Use:   "expire-packs",
	Short: "Expire minute packs whose validity has ended",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, cfg config.Config, db *sql.DB) error {
			packs := &services.MinutePackService{
				DB:         db,
				PackRepo:   &repositories.MinutePackRepository{DB: db},
				ClientRepo: &repositories.ClientRepository{DB: db},
				Validity:   cfg.PackValidity(),
				Logger:     logger,
			}
			n, err := packs.ExpirePacks(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d packs\n", n)
			return nil
		})
	},
}

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Recompute the analytics of one day (default today, Europe/Paris)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dayFlag, _ := cmd.Flags().GetString("day")
		day := timeutil.Now()
		if dayFlag != "" {
			parsed, err := timeutil.ParseDay(dayFlag)
			if err != nil {
				return fmt.Errorf("--day must be YYYY-MM-DD: %w", err)
			}
			day = parsed
		}
		return withDB(cmd.Context(), func(ctx context.Context, cfg config.Config, db *sql.DB) error {
			svc := &services.AnalyticsService{
				AnalyticsRepo: &repositories.AnalyticsRepository{DB: db},
				StatsRepo:     &repositories.AgentStatsRepository{DB: db},
				ClientRepo:    &repositories.ClientRepository{DB: db},
				AgentRepo:     &repositories.AgentRepository{DB: db},
				ReviewsRepo:   &repositories.ReviewRepository{DB: db},
				Logger:        logger,
			}
			if cfg.Redis.URL != "" {
				opts, err := redis.ParseURL(cfg.Redis.URL)
				if err != nil {
					return fmt.Errorf("parse REDIS_URL: %w", err)
				}
				svc.Redis = redis.NewClient(opts)
				defer svc.Redis.Close()
			}
			if err := svc.Rollup(ctx, day); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled up %s\n", timeutil.DayKey(day))
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML configuration")

	createAdminCmd.Flags().String("name", "admin", "display name")
	createAdminCmd.Flags().String("email", "", "login email")
	createAdminCmd.Flags().String("password", "", "password (at least 8 characters)")
	_ = createAdminCmd.MarkFlagRequired("email")

	rollupCmd.Flags().String("day", "", "day to recompute, YYYY-MM-DD")

	rootCmd.AddCommand(migrateCmd, createAdminCmd, expirePacksCmd, rollupCmd)
}

func withDB(ctx context.Context, fn func(ctx context.Context, cfg config.Config, db *sql.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return fn(ctx, cfg, db)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
