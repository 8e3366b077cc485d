// toolhubctl is the ops companion to the toolhub server: seed a demo catalog,
// inspect relationship stats, smoke-test usage recording. It talks to the
// database directly with the same configuration the server uses.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devtoolhub/toolhub/internal/cache"
	"github.com/devtoolhub/toolhub/internal/catalog"
	"github.com/devtoolhub/toolhub/internal/config"
	"github.com/devtoolhub/toolhub/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "toolhubctl",
		Short: "Operations CLI for the toolhub catalog",
	}

	root.AddCommand(newSeedCommand())
	root.AddCommand(newStatsCommand())
	root.AddCommand(newRecordUsageCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*store.Gorm, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Database.DSN())
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a small demo catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			admin := catalog.NewAdmin(st, cache.NewMemoryCache(), nil)
			rels := catalog.NewRelationships(st, nil)

			encoding, err := admin.CreateTag(ctx, catalog.CreateTagInput{Name: "Encoding", Color: "#2563eb"})
			if err != nil {
				return err
			}
			crypto, err := admin.CreateTag(ctx, catalog.CreateTagInput{Name: "Hashing", Color: "#16a34a"})
			if err != nil {
				return err
			}

			seedTools := []struct {
				input catalog.CreateToolInput
				tags  []*catalog.Tag
			}{
				{catalog.CreateToolInput{Name: "Base64 Encoder", Description: "Encode and decode base64", DisplayOrder: 1}, []*catalog.Tag{encoding}},
				{catalog.CreateToolInput{Name: "Hash Generator", Description: "MD5, SHA-1 and SHA-256 digests", DisplayOrder: 2}, []*catalog.Tag{crypto}},
				{catalog.CreateToolInput{Name: "Favicon Generator", Description: "Generate favicons from an image", DisplayOrder: 3}, nil},
			}

			for _, seed := range seedTools {
				tool, err := admin.CreateTool(ctx, seed.input)
				if err != nil {
					return err
				}
				for _, tag := range seed.tags {
					if err := rels.AssignTag(ctx, tool.ID, tag.ID); err != nil {
						return err
					}
				}
				fmt.Printf("created %s (%s)\n", tool.Name, tool.Slug)
			}

			return nil
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print relationship statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := catalog.NewRelationships(st, nil).Stats(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("assignments:     %d\n", stats.TotalAssignments)
			fmt.Printf("tools with tags: %d\n", stats.ToolsWithTags)
			fmt.Printf("tags with tools: %d\n", stats.TagsWithTools)
			fmt.Printf("avg tags/tool:   %.2f\n", stats.AvgTagsPerTool)
			return nil
		},
	}
}

func newRecordUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record-usage <slug>",
		Short: "Record one usage event for a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			svc := catalog.NewService(st, cache.NewMemoryCache(), nil)
			status, err := svc.RecordUsage(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(status.String())
			return nil
		},
	}
}
