// aos-ssh-gatewayd is the AOS SSH session pool and command dispatcher
// gateway: it maintains a pool of live SSH sessions to network switches
// (direct or tunneled through a jump host), authorizes commands against a
// configured allow-list, and exposes both over an HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ale/aos-ssh-gateway/pkg/dispatch"
	"github.com/ale/aos-ssh-gateway/pkg/gate"
	"github.com/ale/aos-ssh-gateway/pkg/gwapi"
	"github.com/ale/aos-ssh-gateway/pkg/gwlog"
	"github.com/ale/aos-ssh-gateway/pkg/inventory"
	"github.com/ale/aos-ssh-gateway/pkg/sshpool"
	"github.com/ale/aos-ssh-gateway/pkg/version"
)

// App holds CLI state shared across commands.
type App struct {
	port         int
	logLevel     string
	confFile     string
	hostFile     string
	idleTimeout  time.Duration
	reapInterval time.Duration
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "aos-ssh-gatewayd",
	Short:         "AOS SSH session pool and command dispatcher gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Info())
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&app.port, "port", envInt("ALE_AOS_SSH_PORT", 8110), "HTTP listen port")
	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", envOr("ALE_AOS_SSH_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&app.confFile, "aos-ssh-conf-file", envOr("ALE_AOS_SSH_CONF_FILE", "data/aos-ssh-conf.yaml"), "Path to the command allow-list YAML file")
	rootCmd.PersistentFlags().StringVar(&app.hostFile, "aos-ssh-host-file", envOr("ALE_AOS_SSH_HOST_FILE", "data/aos-ssh-host.json"), "Path to the device/jump-host inventory JSON file")
	rootCmd.PersistentFlags().DurationVar(&app.idleTimeout, "idle-timeout", 300*time.Second, "Idle session timeout before reaping")
	rootCmd.PersistentFlags().DurationVar(&app.reapInterval, "reap-interval", 30*time.Second, "Idle reaper wake-up interval")

	rootCmd.AddCommand(versionCmd, serveCmd)
	rootCmd.RunE = serveCmd.RunE
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

func runServe() error {
	if err := gwlog.SetLevel(app.logLevel); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", app.logLevel, err)
	}

	g, err := gate.Load(app.confFile)
	if err != nil {
		return fmt.Errorf("loading command gate: %w", err)
	}
	gwlog.WithField("patterns", len(g.Patterns())).Info("loaded allow-list patterns")

	inv, err := inventory.Load(app.hostFile)
	if err != nil {
		return fmt.Errorf("loading inventory: %w", err)
	}
	jumpCount, deviceCount := len(inv.JumpNames()), len(inv.List(nil))
	gwlog.WithFields(map[string]interface{}{
		"jump_hosts": jumpCount,
		"devices":    deviceCount,
	}).Infof("loaded %d jump ssh hosts, %d devices", jumpCount, deviceCount)

	pool := sshpool.New(inv)
	disp := dispatch.New(inv, pool, g)
	router := gwapi.NewRouter(disp, inv)

	reaper := sshpool.NewReaper(pool, app.reapInterval, app.idleTimeout)
	reapCtx, cancelReap := context.WithCancel(context.Background())
	go reaper.Run(reapCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		gwlog.WithField("port", app.port).Info("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		gwlog.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		gwlog.Logger.Errorf("server error: %v", err)
	}

	cancelReap()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		gwlog.Logger.Errorf("error during HTTP shutdown: %v", err)
	}

	pool.CloseAll()
	gwlog.Logger.Info("all sessions closed, exiting")
	return nil
}
