package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pagecrawl/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored pages and posts to files",
	Long:  "Reads everything from the configured database and writes it under the export directory. Filenames carry a timestamp so repeated exports never overwrite each other.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pages, err := st.ListPages(ctx)
		if err != nil {
			return err
		}
		posts, err := st.ListPosts(ctx, "")
		if err != nil {
			return err
		}
		if len(pages) == 0 && len(posts) == 0 {
			fmt.Println("Nothing to export.")
			return nil
		}

		exp, err := store.NewExporter(cfg.Export.Dir)
		if err != nil {
			return err
		}

		switch exportFormat {
		case "csv":
			pagesPath, postsPath, err := exp.WriteCSV(pages, posts)
			if err != nil {
				return err
			}
			fmt.Println(pagesPath)
			fmt.Println(postsPath)
		case "xlsx":
			path, err := exp.WriteXLSX(pages, posts)
			if err != nil {
				return err
			}
			fmt.Println(path)
		case "json":
			for _, page := range pages {
				pagePosts, err := st.ListPosts(ctx, page.ID)
				if err != nil {
					return err
				}
				path, err := exp.WriteJSON(page, pagePosts)
				if err != nil {
					return err
				}
				fmt.Println(path)
			}
		default:
			return eris.Errorf("unknown export format %q (json, csv, xlsx)", exportFormat)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format: json, csv, xlsx")
	rootCmd.AddCommand(exportCmd)
}
