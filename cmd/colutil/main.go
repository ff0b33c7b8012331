// Command colutil inspects the collection database from the command line:
// list folder keys, search, or look up one folder.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"audioserve/internal/collection"
)

func main() {
	app := &cli.Command{
		Name:  "colutil",
		Usage: "Inspect the audioserve collection database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the collection database",
				Value:   "/database/audioserve.db",
			},
			&cli.IntFlag{
				Name:    "collection",
				Aliases: []string{"c"},
				Usage:   "Collection index",
				Value:   0,
			},
		},
		Commands: []*cli.Command{
			listCommand(),
			searchCommand(),
			getCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "colutil: %v\n", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cmd *cli.Command) (*collection.Store, error) {
	path := cmd.String("db")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s not found: %w", path, err)
	}
	return collection.NewStore(ctx, path)
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List folder keys of a collection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "prefix",
				Aliases: []string{"p"},
				Usage:   "Only list keys with this prefix",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			col := int(cmd.Int("collection"))
			keys, err := store.ListKeys(ctx, col)
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}

			prefix := cmd.String("prefix")
			n := 0
			for _, key := range keys {
				if prefix != "" && !strings.HasPrefix(key, prefix) {
					continue
				}
				fmt.Println(key)
				n++
			}
			fmt.Fprintf(os.Stderr, "%d folders in collection %d\n", n, col)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search folders by name",
		ArgsUsage: "<query>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if query == "" {
				return fmt.Errorf("query is required")
			}

			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.Search(ctx, int(cmd.Int("collection")), query)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			for _, ref := range result.Subfolders {
				fmt.Printf("%s\t%s\n", ref.Name, ref.Path)
			}
			fmt.Fprintf(os.Stderr, "%d matches\n", len(result.Subfolders))
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Look up one folder by its exact path",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("path is required")
			}

			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ref, err := store.Get(ctx, int(cmd.Int("collection")), path)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", ref.Name, ref.Path)
			return nil
		},
	}
}
