package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"erp_access/internal/config"
	"erp_access/internal/db"
	"erp_access/internal/logging"
	"erp_access/internal/models"
	"erp_access/internal/rbac"
	"erp_access/internal/store"
)

// env is what every subcommand works against, built in PersistentPreRunE.
type env struct {
	cfg    config.Config
	log    *logrus.Logger
	db     *gorm.DB
	store  *store.Store
	engine *rbac.Engine
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		e       env
	)

	root := &cobra.Command{
		Use:   "aclctl",
		Short: "Inspect and seed ERP access control",
		Long: `aclctl - ERP access control tool

aclctl installs permission manifests and answers access questions against
the same database the API server uses: which groups a user holds, whether a
model operation is granted, and which record filter applies.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logging.NewWithOutput(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

			e.db, err = db.Connect(cfg.DBDriver, cfg.DSN, e.log)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(e.db); err != nil {
				return err
			}
			e.store = store.New(e.db, e.log)

			opts := []rbac.Option{rbac.WithLogger(e.log), rbac.WithRuleCache(cfg.RuleCacheSize, cfg.RuleCacheTTL)}
			if cfg.StrictDomains {
				opts = append(opts, rbac.WithStrictDomains())
			}
			e.engine = rbac.New(e.store.Sources(), opts...)
			e.store.OnChange(e.engine.Invalidate)

			// One invocation is one request: decisions are memoized across it.
			cmd.SetContext(rbac.WithRequestCache(cmd.Context()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.db == nil {
				return nil
			}
			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment and .env only)")

	root.AddCommand(
		newSeedCmd(&e),
		newGroupsCmd(&e),
		newCheckCmd(&e),
		newFilterCmd(&e),
	)
	return root
}

// lookupUser accepts a numeric id or an email address.
func (e *env) lookupUser(ctx context.Context, ref string) (*models.User, error) {
	if ref == "" {
		return nil, fmt.Errorf("--user is required")
	}
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return e.store.Users.ByID(ctx, id)
	}
	return e.store.Users.ByEmail(ctx, ref)
}

// decisionFlags are shared by check and filter.
type decisionFlags struct {
	user  string
	model string
	op    string
}

func (f *decisionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.user, "user", "", "user id or email")
	fl.StringVar(&f.model, "model", "", "model identifier, e.g. crm.lead")
	fl.StringVar(&f.op, "op", "read", "operation: read, write, create or delete")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("model")
}

func (f *decisionFlags) resolve(ctx context.Context, e *env) (*models.User, rbac.Operation, error) {
	op, err := rbac.ParseOperation(f.op)
	if err != nil {
		return nil, "", err
	}
	u, err := e.lookupUser(ctx, f.user)
	if err != nil {
		return nil, "", err
	}
	return u, op, nil
}
