package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JoseTor101/mom-middleware/pkg/election"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Inspect or clear the cluster master registration",
}

var masterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current master registration and known instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		redisAddr, stateFile, _, err := resolveSettings(cmd)
		if err != nil {
			return err
		}
		s := store.NewRedisStore(redisAddr)
		defer s.Close()
		ctx := context.Background()

		masterAddr, ok, err := s.Get(ctx, election.MasterKey)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No master node is currently registered.")
			return fmt.Errorf("master not registered")
		}

		publicAddr, _, err := s.Get(ctx, election.MasterPublicKey)
		if err != nil {
			return err
		}
		alive, err := s.Exists(ctx, election.HeartbeatKey)
		if err != nil {
			return err
		}

		fmt.Println("===== MASTER NODE STATUS =====")
		fmt.Printf("Local address:  %s\n", masterAddr)
		if publicAddr != "" {
			fmt.Printf("Public address: %s\n", publicAddr)
		}
		if alive {
			fmt.Println("Heartbeat:      active")
		} else {
			fmt.Println("Heartbeat:      missing")
		}

		sf, err := state.Load(stateFile)
		if err != nil {
			return err
		}
		instances := sf.Instances()
		fmt.Printf("\nRegistered instances (%d):\n", len(instances))
		for name, addr := range instances {
			fmt.Printf("  - %s: %s\n", name, addr)
		}

		connectAddr := publicAddr
		if connectAddr == "" {
			connectAddr = masterAddr
		}
		fmt.Println("\n===== CONNECTION COMMAND =====")
		fmt.Printf("momd join --master-url=%s --instance-name=my-node\n", connectAddr)
		return nil
	},
}

var masterClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the master registration from the coordination store",
	RunE: func(cmd *cobra.Command, args []string) error {
		redisAddr, _, _, err := resolveSettings(cmd)
		if err != nil {
			return err
		}
		s := store.NewRedisStore(redisAddr)
		defer s.Close()

		err = s.Del(context.Background(),
			election.MasterKey,
			election.MasterPublicKey,
			election.MasterPortKey,
			election.HeartbeatKey,
		)
		if err != nil {
			return err
		}
		fmt.Println("Master node registration cleared.")
		return nil
	},
}

func init() {
	masterCmd.AddCommand(masterStatusCmd)
	masterCmd.AddCommand(masterClearCmd)
}
