package main

import (
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ripiotrade/internal/config"
	"ripiotrade/pkg/exchange/ripio"
)

type app struct {
	v          *viper.Viper
	configFile string
	out        io.Writer
	logger     zerolog.Logger
	ex         *ripio.Exchange
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out}

	root := &cobra.Command{
		Use:           "ripio",
		Short:         "Ripio Trade command line client",
		Long:          "Signed REST and websocket client for the Ripio Trade API. Credentials are read from RIPIO_API_KEY and RIPIO_API_SECRET or from the config file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.ex != nil {
				return a.ex.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.String("base-url", "", "REST base URL")
	flags.String("ws-url", "", "websocket URL")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.Duration("timeout", 0, "request timeout")
	flags.Int("max-retries", 0, "retries of failed transport or 5xx calls, each signed again")

	a.bindFlag(root, config.KeyBaseURL, "base-url")
	a.bindFlag(root, config.KeyWSURL, "ws-url")
	a.bindFlag(root, config.KeyLogLevel, "log-level")
	a.bindFlag(root, config.KeyTimeout, "timeout")
	a.bindFlag(root, config.KeyMaxRetries, "max-retries")

	root.AddCommand(
		a.balancesCmd(),
		a.bookCmd(),
		a.ordersCmd(),
		a.orderCmd(),
		a.withdrawalsCmd(),
		a.ticketCmd(),
		a.streamCmd(),
	)
	return root
}

func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	_ = a.v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag))
}

// setup loads the configuration and builds the client. Missing credentials
// stop the command here, before any request is made.
func (a *app) setup() error {
	if err := config.ReadFile(a.v, a.configFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}

	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(config.Level(cfg)).
		With().Timestamp().Logger()

	if err := cfg.Credentials.Validate(); err != nil {
		return err
	}

	a.ex, err = ripio.New(cfg, ripio.WithLogger(a.logger))
	return err
}

func (a *app) print(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = a.out.Write(append(data, '\n'))
	return err
}
