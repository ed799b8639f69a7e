package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/JoseTor101/mom-middleware/pkg/registry"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Administer topics",
}

// topicRegistry wires a registry for admin commands.
func topicRegistry(cmd *cobra.Command) (*registry.Registry, store.Store, error) {
	redisAddr, stateFile, _, err := resolveSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	s := store.NewRedisStore(redisAddr)
	sf, err := state.Load(stateFile)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return registry.New(s, sf), s, nil
}

var topicCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partitions, _ := cmd.Flags().GetInt("partitions")
		reg, s, err := topicRegistry(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := reg.CreateTopic(context.Background(), args[0], partitions); err != nil {
			return err
		}
		fmt.Printf("Topic %q created with %d partitions\n", args[0], partitions)
		return nil
	},
}

var topicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, s, err := topicRegistry(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		topics, err := reg.ListTopics(context.Background())
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			fmt.Println("No topics.")
			return nil
		}
		for _, t := range topics {
			fmt.Println(t)
		}
		return nil
	},
}

var topicDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a topic and all its partitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, s, err := topicRegistry(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := reg.DeleteTopic(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Topic %q deleted\n", args[0])
		return nil
	},
}

var topicStatsCmd = &cobra.Command{
	Use:   "stats <name>",
	Short: "Show per-partition message counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, s, err := topicRegistry(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		exists, err := reg.Exists(ctx, args[0])
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("topic %q: %w", args[0], types.ErrNotFound)
		}

		stats, err := reg.PartitionStats(ctx, args[0])
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(stats))
		for id := range stats {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		var total int64
		for _, id := range ids {
			fmt.Printf("partition %d: %d message(s)\n", id, stats[id])
			total += stats[id]
		}
		fmt.Printf("total: %d\n", total)
		return nil
	},
}

func init() {
	topicCreateCmd.Flags().Int("partitions", types.DefaultPartitions, "Number of partitions")
	topicCmd.AddCommand(topicCreateCmd)
	topicCmd.AddCommand(topicListCmd)
	topicCmd.AddCommand(topicDeleteCmd)
	topicCmd.AddCommand(topicStatsCmd)
}
