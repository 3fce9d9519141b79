package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/naming"
	"github.com/Nomadcxx/jellyrename/internal/ui"
)

func newParseCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <names>...",
		Short: "Show what the parser reads from file names",
		Long: `Parse file names offline and print the title, year, season and episode
found in each. No catalog is consulted and no file is touched.

Examples:
  jellyrename parse Show.Name.S01E01-E02.720p.mkv "Show Name 1x05.avi"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !asJSON {
				fmt.Println(ui.HintTable(args))
				return nil
			}
			type hintView struct {
				Name   string `json:"name"`
				Title  string `json:"title"`
				Year   int    `json:"year,omitempty"`
				Season *int   `json:"season"`
				Start  int    `json:"episode_start,omitempty"`
				End    int    `json:"episode_end,omitempty"`
				Ext    string `json:"ext"`
			}
			views := make([]hintView, 0, len(args))
			for _, name := range args {
				h := naming.Parse(name)
				v := hintView{Name: name, Title: h.Title, Year: h.Year, Season: h.Season, Ext: h.Ext}
				if h.Episode != nil {
					v.Start, v.End = h.Episode.Start, h.Episode.End
				}
				views = append(views, v)
			}
			return writeJSON(views)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
