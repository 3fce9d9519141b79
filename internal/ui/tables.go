package ui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Nomadcxx/jellyrename/internal/database"
	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/naming"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/session"
	"github.com/Nomadcxx/jellyrename/internal/undo"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// RenderTable renders rows with a rounded border. Short rows are padded.
func RenderTable(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if IsTerminal() {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// EntriesTable lists batch entries with their status and planned target.
func EntriesTable(entries []session.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		show := ""
		if s := e.Show(); s != nil {
			show = Show(s.String())
		}
		target := ""
		if e.Target != "" {
			target = displayTarget(e.Source, e.Target)
		}
		rows = append(rows, []string{
			strconv.Itoa(e.ID),
			StatusLabel(e.Status),
			filepath.Base(e.Source),
			show,
			target,
			e.Error,
		})
	}
	return RenderTable(
		[]string{"#", "Status", "File", "Show", "New name", "Note"},
		rows,
		[]Align{AlignRight},
	)
}

// StepsTable lists the filesystem renames of a plan in execution order.
func StepsTable(plan *planner.Plan) string {
	rows := make([][]string, 0, len(plan.Steps))
	for i, s := range plan.Steps {
		phase := s.Phase.String()
		if s.Overwrite {
			phase += Warning(" (overwrite)")
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(s.EntryID),
			phase,
			Path(s.From),
			Path(s.To),
		})
	}
	return RenderTable(
		[]string{"Step", "#", "Phase", "From", "To"},
		rows,
		[]Align{AlignRight, AlignRight},
	)
}

// PlanSummary is the one-line tally printed under a plan.
func PlanSummary(plan *planner.Plan) string {
	parts := []string{Count(len(plan.Renames), "rename", "renames")}
	if n := len(plan.Unchanged); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unchanged", n))
	}
	if n := len(plan.Unmatched); n > 0 {
		parts = append(parts, Warning(fmt.Sprintf("%d unmatched", n)))
	}
	if n := len(plan.Rejected); n > 0 {
		parts = append(parts, Error(fmt.Sprintf("%d rejected", n)))
	}
	if n := len(plan.Deferred); n > 0 {
		parts = append(parts, Warning(fmt.Sprintf("%d overwriting", n)))
	}
	return strings.Join(parts, ", ")
}

// FailuresTable lists entries that did not reach their target.
func FailuresTable(failed []executor.Failure) string {
	rows := make([][]string, 0, len(failed))
	for _, f := range failed {
		rows = append(rows, []string{
			strconv.Itoa(f.EntryID),
			Path(f.Path),
			Path(f.Target),
			Error(f.Message),
		})
	}
	return RenderTable([]string{"#", "Now at", "Wanted", "Error"}, rows, []Align{AlignRight})
}

// UndoTable lists the moves an undo reverted.
func UndoTable(res *undo.Result) string {
	rows := make([][]string, 0, len(res.Reverted))
	for _, m := range res.Reverted {
		rows = append(rows, []string{
			strconv.Itoa(m.EntryID),
			filepath.Base(m.Target),
			Path(m.Source),
		})
	}
	return RenderTable([]string{"#", "Was", "Restored to"}, rows, []Align{AlignRight})
}

// HistoryTable lists stored batches, newest first.
func HistoryTable(batches []database.Batch) string {
	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		state := Success("applied")
		if b.Undone() {
			state = Dim("undone " + RelativeTime(*b.UndoneAt))
		}
		rows = append(rows, []string{
			strconv.FormatInt(b.ID, 10),
			b.CreatedAt.Local().Format(time.DateTime),
			RelativeTime(b.CreatedAt),
			b.Mode,
			strconv.Itoa(b.EntryCount),
			state,
		})
	}
	return RenderTable(
		[]string{"Batch", "When", "", "Mode", "Files", "State"},
		rows,
		[]Align{AlignRight, AlignLeft, AlignLeft, AlignLeft, AlignRight},
	)
}

// HintTable shows what the parser read from each name.
func HintTable(names []string) string {
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		h := naming.Parse(name)
		season, episode, year := "-", "-", "-"
		if h.Season != nil {
			season = strconv.Itoa(*h.Season)
		}
		if h.Episode != nil {
			episode = h.Episode.String()
		}
		if h.Year > 0 {
			year = strconv.Itoa(h.Year)
		}
		rows = append(rows, []string{filepath.Base(name), h.Title, year, season, episode, h.Ext})
	}
	return RenderTable(
		[]string{"Name", "Title", "Year", "Season", "Episode", "Ext"},
		rows,
		[]Align{AlignLeft, AlignLeft, AlignRight, AlignRight},
	)
}

// displayTarget shortens target to a path relative to the source directory
// when it stays below it.
func displayTarget(source, target string) string {
	rel, err := filepath.Rel(filepath.Dir(source), target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return target
	}
	return rel
}
