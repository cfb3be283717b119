package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/ordernotes/internal/profile"
	"github.com/hrygo/ordernotes/internal/version"
	"github.com/hrygo/ordernotes/server"
	"github.com/hrygo/ordernotes/store"
	"github.com/hrygo/ordernotes/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "ordernotes",
		Short: "Order notes service that hides system generated notes",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if viper.GetBool("verbose") || viper.GetString("mode") == "dev" {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the order notes API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("data", ".")
	viper.SetDefault("timezone", "UTC")
	viper.SetDefault("date-format", profile.DefaultDateFormat)
	viper.SetDefault("cache-ttl", profile.DefaultCacheTTL)
	viper.SetDefault("cache-max-items", profile.DefaultCacheMaxItems)
	viper.SetDefault("rate-limit", float64(profile.DefaultRateLimit))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)

	serveCmd.Flags().String("addr", "", "address of server")
	serveCmd.Flags().Int("port", 8081, "port of server")
	serveCmd.Flags().String("data", ".", "data directory")
	serveCmd.Flags().String("driver", "sqlite", "database driver (sqlite or postgres)")
	serveCmd.Flags().String("dsn", "", "database source name")
	serveCmd.Flags().String("secret", "", "secret for bearer tokens, empty disables authentication")
	serveCmd.Flags().Duration("cache-ttl", profile.DefaultCacheTTL, "how long cached note lists stay fresh")
	serveCmd.Flags().Int("cache-max-items", profile.DefaultCacheMaxItems, "maximum number of cached note lists")
	serveCmd.Flags().String("timezone", "UTC", "timezone used to display note dates")
	serveCmd.Flags().String("date-format", profile.DefaultDateFormat, "Go layout used to display note dates")
	serveCmd.Flags().Float64("rate-limit", profile.DefaultRateLimit, "requests per second per client, 0 disables limiting")
	serveCmd.Flags().Int("max-connections", 0, "maximum simultaneous client connections, 0 means unlimited")
	serveCmd.Flags().StringArray("classifier-rule", nil, "extra CEL rule marking notes as system generated, repeatable")

	for _, flags := range []*cobra.Command{rootCmd, serveCmd} {
		if err := viper.BindPFlags(flags.PersistentFlags()); err != nil {
			panic(err)
		}
		if err := viper.BindPFlags(flags.Flags()); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("ordernotes")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, classifyCmd, versionCmd)
}

// loadProfile builds the profile from flags, ORDERNOTES_* variables and defaults.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:            viper.GetString("mode"),
		Addr:            viper.GetString("addr"),
		Port:            viper.GetInt("port"),
		Data:            viper.GetString("data"),
		Driver:          viper.GetString("driver"),
		DSN:             viper.GetString("dsn"),
		Secret:          viper.GetString("secret"),
		CacheTTL:        viper.GetDuration("cache-ttl"),
		CacheMaxItems:   viper.GetInt("cache-max-items"),
		Timezone:        viper.GetString("timezone"),
		DateFormat:      viper.GetString("date-format"),
		RateLimit:       viper.GetFloat64("rate-limit"),
		MaxConnections:  viper.GetInt("max-connections"),
		ClassifierRules: viper.GetStringSlice("classifier-rule"),
	}
	p.FromEnv()
	p.Version = version.GetCurrentVersion(p.Mode)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func runServe(ctx context.Context) error {
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		storeInstance.Close()
		return errors.Wrap(err, "failed to migrate")
	}

	s, err := server.NewServer(ctx, instanceProfile, storeInstance)
	if err != nil {
		storeInstance.Close()
		return errors.Wrap(err, "failed to create server")
	}
	if err := s.Start(ctx); err != nil {
		s.Shutdown(context.Background())
		return err
	}
	printGreetings(instanceProfile)

	<-ctx.Done()
	s.Shutdown(context.Background())
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("ordernotes %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\nDatabase driver: %s\nMode: %s\n", p.Data, p.Driver, p.Mode)
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
	fmt.Println("---")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
