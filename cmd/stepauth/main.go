package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/stepauth/internal/termx"
	"github.com/aussiebroadwan/stepauth/pkg/authflow"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
	"github.com/aussiebroadwan/stepauth/pkg/verifysdk"
)

var version = "v0.1.0"

func main() {
	_ = godotenv.Load(".env") // optional

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func rootCmd() *cobra.Command {
	var (
		server   = envOr("STEPAUTH_SERVER", "http://localhost:8080")
		logLevel = envOr("STEPAUTH_LOG_LEVEL", "warn")
		username string
		window   time.Duration
		timeout  time.Duration
	)

	root := &cobra.Command{
		Use:           "stepauth",
		Short:         "Terminal client for the two step verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVar(&server, "server", server, "verification service URL (env STEPAUTH_SERVER)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "log level on stderr (env STEPAUTH_LOG_LEVEL)")

	login := &cobra.Command{
		Use:   "login",
		Short: "Log in with a password and a code sent to your chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slogx.New(slogx.Config{
				Service: "stepauth",
				Version: version,
				Level:   logLevel,
				Format:  "text",
				Output:  os.Stderr,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := verifysdk.NewClient(server)
			ctrl := authflow.New(verifysdk.NewFlowService(client),
				authflow.WithWindow(window),
				authflow.WithRequestTimeout(timeout),
				authflow.WithLogger(logger),
			)
			defer ctrl.Close()

			out := cmd.ErrOrStderr()
			ui := newTerminalUI(out)
			cancel := ctrl.Subscribe(ui)
			defer cancel()

			if err := runCeremony(ctx, ctrl, ui, termx.Stdio(), username); err != nil {
				return err
			}

			me, err := client.Me(ctx)
			if err != nil {
				return fmt.Errorf("session check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session %s, valid until %s)\n",
				me.Username, me.SessionID, me.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
	login.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	login.Flags().DurationVar(&window, "window", authflow.DefaultWindow, "local code entry window")
	login.Flags().DurationVar(&timeout, "timeout", authflow.DefaultRequestTimeout, "per request timeout")

	root.AddCommand(login)
	return root
}
