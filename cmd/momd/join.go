package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JoseTor101/mom-middleware/pkg/api"
	"github.com/JoseTor101/mom-middleware/pkg/broker"
	"github.com/JoseTor101/mom-middleware/pkg/election"
	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/registry"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a MOM cluster (or bootstrap one when no master exists)",
	Long: `Join starts a broker instance and registers it with the cluster master.
When no --master-url is given and no master is recorded in the coordination
store, this instance claims the master role itself, so the first broker to
start bootstraps the cluster. A master that is given or recorded but does
not answer makes join fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		masterURL, _ := cmd.Flags().GetString("master-url")
		instanceName, _ := cmd.Flags().GetString("instance-name")
		port, _ := cmd.Flags().GetInt("port")
		healthAddr, _ := cmd.Flags().GetString("health-addr")
		autoRemove, _ := cmd.Flags().GetBool("auto-remove")

		redisAddr, stateFile, cfg, err := resolveSettings(cmd)
		if err != nil {
			return err
		}
		if instanceName == "" {
			instanceName = cfg.Instance
		}
		if instanceName == "" {
			hostname, err := os.Hostname()
			if err != nil {
				hostname = "unknown"
			}
			instanceName = "node-" + hostname
		}
		if healthAddr == "" {
			healthAddr = cfg.HealthAddr
		}

		fmt.Printf("Joining MOM cluster...\n")
		fmt.Printf("  Instance name: %s\n", instanceName)
		fmt.Printf("  Coordination store: %s\n", redisAddr)
		fmt.Printf("  State file: %s\n", stateFile)
		if masterURL != "" {
			fmt.Printf("  Master URL: %s\n", masterURL)
		}

		s := store.NewRedisStore(redisAddr)
		defer s.Close()

		sf, err := state.Load(stateFile)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := sf.Restore(ctx, s); err != nil {
			return fmt.Errorf("failed to warm coordination store: %w", err)
		}

		reg := registry.New(s, sf)
		b := broker.New(broker.Config{
			InstanceName: instanceName,
			MasterURL:    masterURL,
			Port:         port,
			Store:        s,
			State:        sf,
			Registry:     reg,
			Election:     election.DefaultConfig(),
			AutoRemove:   autoRemove,
		})

		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("failed to start broker: %w", err)
		}
		fmt.Printf("Broker listening on port %d\n", b.Port())

		if healthAddr != "" {
			hs := api.NewHealthServer(b, s)
			go func() {
				if err := hs.Start(healthAddr); err != nil {
					log.WithComponent("api").Error().Err(err).Msg("health server stopped")
				}
			}()
			fmt.Printf("Health endpoints on %s\n", healthAddr)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("Shutting down...")
		b.Stop(ctx)
		return nil
	},
}

func init() {
	joinCmd.Flags().String("master-url", "", "Master address (host:port); discovered from the store when empty")
	joinCmd.Flags().String("instance-name", "", "Name for this instance (default: node-<hostname>)")
	joinCmd.Flags().Int("port", 0, "RPC port (default: auto-assigned)")
	joinCmd.Flags().String("health-addr", "", "Address for health/metrics HTTP endpoints (disabled when empty)")
	joinCmd.Flags().Bool("auto-remove", true, "Automatically unregister unreachable instances")
}
