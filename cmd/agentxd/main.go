package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/snmpkit/agentx/pkg/api"
	"github.com/snmpkit/agentx/pkg/config"
	"github.com/snmpkit/agentx/pkg/lifecycle"
	"github.com/snmpkit/agentx/pkg/metrics"
	"github.com/snmpkit/agentx/pkg/oid"
	"github.com/snmpkit/agentx/pkg/subagent"
)

var (
	cfgFile string
	version = "dev" // set by build flags
)

// daemonConfig extends the session configuration with the demo
// region's settings.
type daemonConfig struct {
	subagent.Config
	RegionRoot      string          `json:"region_root"`
	RefreshInterval config.Duration `json:"refresh_interval"`
}

// defaultRegionRoot sits under the net-snmp experimental arc so a demo
// subagent never collides with real registrations.
const defaultRegionRoot = "1.3.6.1.4.1.8072.2.255"

func (c *daemonConfig) Validate() error {
	if c.RegionRoot == "" {
		c.RegionRoot = defaultRegionRoot
	}

	if _, err := oid.Parse(c.RegionRoot); err != nil {
		return fmt.Errorf("region_root: %w", err)
	}

	if time.Duration(c.RefreshInterval) == 0 {
		c.RefreshInterval = config.Duration(10 * time.Second)
	}

	return c.Config.Validate()
}

var rootCmd = &cobra.Command{
	Use:     "agentxd",
	Version: version,
	Short:   "AgentX subagent daemon",
	Long: `agentxd connects to a master SNMP agent over AgentX (RFC 2741),
registers a demo region of system information, and serves GET, GETNEXT,
GETBULK, and SET requests on its behalf.`,
	Example: `  # Connect to the local master over TCP
  agentxd --config /etc/agentx/agentxd.json

  # Validate a configuration file
  agentxd validate --config agentxd.json`,
	RunE: runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		var cfg daemonConfig

		if err := config.LoadAndValidate(cfgFile, &cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration %s is valid\n", cfgFile)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "/etc/agentx/agentxd.json", "Path to config file")
	rootCmd.AddCommand(validateCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	var cfg daemonConfig

	if err := config.LoadAndValidate(cfgFile, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m := metrics.New("")

	session, err := subagent.NewSession(&cfg.Config, subagent.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	root := oid.MustParse(cfg.RegionRoot)

	writable := newWritableString(root.Append(oid.OID{10, 0}), []byte("agentxd"))

	_, err = session.Register(subagent.RegionConfig{
		Root:     root,
		Updater:  newSysInfoUpdater(writable),
		Interval: time.Duration(cfg.RefreshInterval),
		Handler:  writable,
	})
	if err != nil {
		return fmt.Errorf("failed to register region %s: %w", cfg.RegionRoot, err)
	}

	apiServer := api.NewAPIServer(session, m.Handler())

	opts := lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: "agentxd",
		Service:     &sessionService{session: session},
		HTTPHandler: apiServer.Router(),
	}

	if err := lifecycle.RunServer(context.Background(), &opts); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// sessionService adapts the session to lifecycle.Service.
type sessionService struct {
	session *subagent.Session
}

func (s *sessionService) Start(ctx context.Context) error {
	log.Printf("Starting AgentX session...")

	return s.session.Run(ctx)
}

func (s *sessionService) Stop(ctx context.Context) error {
	log.Printf("Stopping AgentX session...")

	return s.session.Stop(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
