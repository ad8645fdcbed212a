package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Coop_Voting/internal/repository/mysql"
	"Coop_Voting/internal/service"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coopvote",
		Short:        "Housing cooperative polls and resident management",
		SilenceUsage: true,
		// 不带子命令时直接启动服务
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the yaml config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server and background workers",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update database tables",
			RunE:  runMigrate,
		},
		newCreateAdminCmd(),
		&cobra.Command{
			Use:   "reconcile",
			Short: "Run one vote counter reconciliation pass and exit",
			RunE:  runReconcile,
		},
	)
	return root
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Serve(ctx)
}

func runMigrate(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := openDB(cfg); err != nil {
		return err
	}
	if err := mysql.Migrate(mysql.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(os.Stdout, "migration complete")
	return nil
}

func newCreateAdminCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a super-admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := openDB(cfg); err != nil {
				return err
			}
			if err := mysql.Migrate(mysql.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			u, err := service.NewUserService(mysql.DB, nil, nil).CreateSuperAdmin(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created super-admin %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	if err := openDB(cfg); err != nil {
		return err
	}
	lock, closeRedis, err := openLock(cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	fixed, err := service.NewTallyReconciler(mysql.DB, lock, nil, cfg.Reconcile.BatchSize, cfg.Reconcile.Interval).ReconcileOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "reconciled %d option counters\n", fixed)
	return nil
}
