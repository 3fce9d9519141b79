package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/planner"
)

// namingFlags are the per-run overrides of the [naming] config section.
type namingFlags struct {
	mode         string
	template     string
	showTemplate string
	policy       string
	prefix       string
	base         int
	width        int
	titleCase    bool
}

func (f *namingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "naming mode: episode or serial")
	cmd.Flags().StringVarP(&f.template, "template", "t", "", "naming template, e.g. \"{show} - S{season:02}E{episode:02} - {title}{ext}\"")
	cmd.Flags().StringVar(&f.showTemplate, "show-template", "", "template for files whose episode is unknown")
	cmd.Flags().StringVar(&f.policy, "policy", "", "collision policy: strict or overwrite")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "serial mode name prefix")
	cmd.Flags().IntVar(&f.base, "base", 0, "serial mode first number")
	cmd.Flags().IntVar(&f.width, "width", 0, "serial mode zero padding width")
	cmd.Flags().BoolVar(&f.titleCase, "title-case", false, "title case show and episode names")
}

// overrides returns only the flags the user actually set.
func (f *namingFlags) overrides(cmd *cobra.Command) planner.Overrides {
	var o planner.Overrides
	changed := cmd.Flags().Changed
	if changed("mode") {
		o.Mode = &f.mode
	}
	if changed("template") {
		o.Template = &f.template
	}
	if changed("show-template") {
		o.ShowTemplate = &f.showTemplate
	}
	if changed("policy") {
		o.Policy = &f.policy
	}
	if changed("prefix") {
		o.SerialPrefix = &f.prefix
	}
	if changed("base") {
		o.SerialBase = &f.base
	}
	if changed("width") {
		o.SerialWidth = &f.width
	}
	if changed("title-case") {
		o.TitleCase = &f.titleCase
	}
	return o
}

// parseChoices turns repeated "query=id" flags into a lookup keyed by the
// folded query.
func parseChoices(values []string) (map[string]int, error) {
	choices := make(map[string]int, len(values))
	for _, v := range values {
		query, id, ok := strings.Cut(v, "=")
		query = strings.TrimSpace(query)
		if !ok || query == "" {
			return nil, fmt.Errorf("invalid --choose %q: want query=id", v)
		}
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid --choose %q: id must be a positive number", v)
		}
		choices[foldQuery(query)] = n
	}
	return choices, nil
}

func foldQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
