package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JoseTor101/mom-middleware/pkg/election"
	"github.com/JoseTor101/mom-middleware/pkg/netutil"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
	"github.com/JoseTor101/mom-middleware/pkg/wire"
)

// resolveMaster finds the master RPC address for client commands.
func resolveMaster(cmd *cobra.Command) (string, store.Store, error) {
	masterURL, _ := cmd.Flags().GetString("master-url")
	redisAddr, _, _, err := resolveSettings(cmd)
	if err != nil {
		return "", nil, err
	}
	s := store.NewRedisStore(redisAddr)

	if masterURL != "" {
		return masterURL, s, nil
	}

	ctx := context.Background()
	if addr, ok, err := s.Get(ctx, election.MasterKey); err == nil && ok && addr != "" {
		return netutil.RewriteLocalHostname(addr), s, nil
	}
	s.Close()
	return "", nil, fmt.Errorf("%w: no master registered", types.ErrNotFound)
}

var sendCmd = &cobra.Command{
	Use:   "send <topic> <message>",
	Short: "Publish a message to a topic via the cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		masterAddr, s, err := resolveMaster(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		masterClient := wire.NewClient(masterAddr, wire.DefaultClientConfig())

		// Ask the master for the next worker; fall back to the master
		// itself (it serves the message service too).
		target := masterAddr
		if inst, err := masterClient.GetNextInstance(); err == nil {
			target = netutil.RewriteLocalHostname(inst.Address)
		}

		resp, err := wire.NewClient(target, wire.DefaultClientConfig()).SendMessage(args[0], args[1])
		if err != nil {
			return err
		}
		if resp.Status != types.StatusSuccess {
			return fmt.Errorf("send failed: %s", resp.Message)
		}
		fmt.Printf("Message sent to topic %q\n", args[0])
		return nil
	},
}

var receiveCmd = &cobra.Command{
	Use:   "receive <topic>",
	Short: "Consume the next message from a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		masterAddr, s, err := resolveMaster(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		resp, err := wire.NewClient(masterAddr, wire.DefaultClientConfig()).ReceiveMessage(args[0])
		if err != nil {
			return err
		}
		switch resp.Status {
		case types.StatusSuccess:
			fmt.Println(resp.Message)
			return nil
		case types.StatusEmpty:
			fmt.Println("(no messages available)")
			return nil
		default:
			return fmt.Errorf("receive failed: %s", resp.Message)
		}
	},
}

func init() {
	sendCmd.Flags().String("master-url", "", "Master address (host:port); discovered from the store when empty")
	receiveCmd.Flags().String("master-url", "", "Master address (host:port); discovered from the store when empty")
}
