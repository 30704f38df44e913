package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"linksort/internal/linkstore"
)

func newLinksCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Inspect and seed the link store",
	}
	cmd.AddCommand(newLinksListCommand(ctx))
	cmd.AddCommand(newLinksAddCommand(ctx))
	return cmd
}

func newLinksListCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON bool
		folder string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved links with their folder paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := openLinks(ctx)
			if err != nil {
				return err
			}
			runCtx := commandCtx(cmd)

			if folder != "" {
				folders, items, err := links.Children(runCtx, folder)
				if err != nil {
					return err
				}
				payload := struct {
					Folders []linkstore.Folder `json:"folders"`
					Items   []linkstore.Item   `json:"items"`
				}{folders, items}
				return emit(cmd, asJSON, payload, func(out io.Writer) error {
					rows := make([][]string, 0, len(folders)+len(items))
					for _, f := range folders {
						rows = append(rows, []string{"folder", f.ID, f.Title, ""})
					}
					for _, it := range items {
						rows = append(rows, []string{"link", it.ID, it.Title, it.URL})
					}
					fmt.Fprintln(out, renderTable([]column{col("Kind"), col("ID"), wideCol("Title", 40), wideCol("URL", 60)}, rows))
					return nil
				})
			}

			if asJSON {
				tree, err := links.Export(runCtx)
				if err != nil {
					return err
				}
				return emit(cmd, true, tree, nil)
			}
			items, err := links.ListAll(runCtx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintf(out, "No links in %s\n", links.Path())
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				path := it.Path
				if path == "" {
					path = "(root)"
				}
				rows = append(rows, []string{it.ID, it.Title, it.URL, path})
			}
			fmt.Fprintln(out, renderTable([]column{col("ID"), wideCol("Title", 40), wideCol("URL", 60), col("Folder")}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().StringVar(&folder, "folder", "", "List the direct children of this folder ID")
	return cmd
}

func newLinksAddCommand(ctx *commandContext) *cobra.Command {
	var (
		title  string
		parent string
	)
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a link to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := openLinks(ctx)
			if err != nil {
				return err
			}
			url := strings.TrimSpace(args[0])
			if url == "" {
				return errors.New("url is required")
			}
			if strings.TrimSpace(title) == "" {
				title = url
			}
			id, err := links.AddLink(commandCtx(cmd), title, url, parent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added link %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Link title (defaults to the URL)")
	cmd.Flags().StringVar(&parent, "parent", linkstore.RootID, "Parent folder ID")
	return cmd
}

func openLinks(ctx *commandContext) (*linkstore.File, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return linkstore.OpenFile(cfg.Paths.LinksFile)
}
