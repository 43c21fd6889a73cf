// Command carshop is an interactive console for a car dealership: inventory,
// customer orders, user accounts and an audit journal.
//
//	carshop [-c /path/of/config.yaml] [--store memory|sqlite] [--catalog cars.yaml] [--log-level debug]
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"carshop/config"
	"carshop/console"
	"carshop/logger"
	"carshop/shop"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath  string
	store    string
	catalog  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "carshop",
	Short: "Car dealership management console",
	Long: `Car dealership management console.
Administrators manage cars, orders, users and the audit journal,
managers manage cars and orders, and clients browse available cars
and place orders. All data lives in memory for the life of the process.`,
	SilenceUsage: true,
	RunE:         run,
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Driver = store
	}
	if flags.Changed("catalog") {
		cfg.Catalog = catalog
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	zl, err := logger.NewZapLog(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := shop.OpenStore(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer st.Close()

	seeds := make([]shop.SeedUser, 0, len(cfg.SeedUsers))
	for _, u := range cfg.SeedUsers {
		seeds = append(seeds, shop.SeedUser{Username: u.Username, Password: u.Password, Role: shop.Role(u.Role)})
	}
	d, err := shop.NewDealership(ctx, st, zl,
		shop.WithUserOptions(shop.WithBcryptCost(cfg.BcryptCost)),
		shop.WithSeedUsers(seeds...),
	)
	if err != nil {
		return err
	}

	if cfg.Catalog != "" {
		c, err := shop.LoadCatalog(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("load catalog %s: %w", cfg.Catalog, err)
		}
		n, err := d.ImportCatalog(ctx, c)
		if err != nil {
			return fmt.Errorf("import catalog %s: %w", cfg.Catalog, err)
		}
		zl.Info("catalog loaded", zap.String("path", cfg.Catalog), zap.Int("cars", n))
	}

	return console.New(os.Stdin, os.Stdout, d).Run(ctx)
}

func init() {
	cobra.OnInitialize(fixConfigPath)
	f := rootCmd.Flags()
	f.StringVarP(&cfgPath, "config", "c", "", "config file path")
	f.StringVar(&store, "store", shop.DriverMemory, "repository backend: memory or sqlite")
	f.StringVar(&catalog, "catalog", "", "YAML car catalog to import on startup")
	f.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
}

// fixConfigPath falls back to the CARSHOP_CONFIG environment variable.
func fixConfigPath() {
	if cfgPath == "" {
		cfgPath = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
