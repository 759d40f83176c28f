// Command beaker precompiles the AVM programs listed in a project manifest
// and inspects the results.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	beaker "github.com/branched-services/go-beaker"
	"github.com/branched-services/go-beaker/algod"
)

const envPrefix = "BEAKER"

const (
	manifestKey    = "manifest"
	configKey      = "config"
	offlineKey     = "offline"
	algodURLKey    = "algod-url"
	algodTokenKey  = "algod-token"
	concurrencyKey = "concurrency"
	cacheSizeKey   = "cache-size"
	verbosityKey   = "verbosity"
	metricsFileKey = "metrics-file"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// environment is the configuration shared by every command.
type environment struct {
	v        *viper.Viper
	logger   log.Logger
	registry *prometheus.Registry
}

func newRootCmd() *cobra.Command {
	env := &environment{
		v:        viper.New(),
		logger:   log.Root(),
		registry: prometheus.NewRegistry(),
	}

	cmd := &cobra.Command{
		Use:          "beaker",
		Short:        "Precompile AVM applications and logic signatures",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.writeMetrics()
		},
	}
	addGlobalFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newPrecompileCmd(env),
		newPopulateCmd(env),
		newAssertsCmd(env),
	)
	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP(manifestKey, "m", "beaker.yaml", "Project manifest")
	fs.String(configKey, "", "Config file with defaults for these flags")
	fs.Bool(offlineKey, false, "Assemble locally instead of calling algod")
	fs.String(algodURLKey, "http://localhost:4001", "algod base URL")
	fs.String(algodTokenKey, "", "algod API token")
	fs.Int(concurrencyKey, 1, "Maximum number of programs compiled at once")
	fs.Int(cacheSizeKey, algod.DefaultCacheSize, "Number of compile results kept in memory")
	fs.Int(verbosityKey, 3, "Log level: 0=crit 1=error 2=warn 3=info 4=debug 5=trace")
	fs.String(metricsFileKey, "", "Write compile metrics in text format to this file")
}

// load binds flags, environment and the optional config file, in that order
// of precedence, and sets up logging.
func (e *environment) load(cmd *cobra.Command) error {
	if err := e.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	e.v.SetEnvPrefix(envPrefix)
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	if path := e.v.GetString(configKey); path != "" {
		e.v.SetConfigFile(path)
		if err := e.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	handler := log.NewTerminalHandlerWithLevel(cmd.ErrOrStderr(), log.FromLegacyLevel(e.v.GetInt(verbosityKey)), false)
	e.logger = log.NewLogger(handler)
	return nil
}

// compiler returns the configured compiler. The algod client is cached;
// both are metered into the environment's registry.
func (e *environment) compiler() (beaker.Compiler, error) {
	var c beaker.Compiler
	if e.v.GetBool(offlineKey) {
		c = beaker.OfflineCompiler()
	} else {
		client := algod.New(e.v.GetString(algodURLKey), e.v.GetString(algodTokenKey), algod.WithLogger(e.logger))
		cached, err := algod.NewCachingCompiler(client, e.v.GetInt(cacheSizeKey))
		if err != nil {
			return nil, err
		}
		c = cached
	}
	return algod.NewMeteredCompiler(c, e.registry)
}

func (e *environment) project() (*project, error) {
	m, err := LoadManifest(e.v.GetString(manifestKey))
	if err != nil {
		return nil, err
	}
	return newProject(m)
}

// compile compiles the named node and its dependencies.
func (e *environment) compile(ctx context.Context, p *project, name string) error {
	node, ok := p.node(name)
	if !ok {
		return fmt.Errorf("unknown program %q", name)
	}
	c, err := e.compiler()
	if err != nil {
		return err
	}
	e.logger.Info("Compiling", "root", name, "offline", e.v.GetBool(offlineKey))
	return beaker.Compile(ctx, c, node,
		beaker.WithConcurrency(e.v.GetInt(concurrencyKey)),
		beaker.WithLogger(e.logger),
	)
}

func (e *environment) writeMetrics() error {
	path := e.v.GetString(metricsFileKey)
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, e.registry)
}
