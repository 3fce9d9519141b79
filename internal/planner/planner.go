// Package planner turns matches into an ordered, collision-free list of
// filesystem renames.
package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/matcher"
	"github.com/Nomadcxx/jellyrename/internal/naming"
)

// Mode selects how target names are built.
type Mode int

const (
	// ModeEpisode renders the naming template from catalog matches.
	ModeEpisode Mode = iota
	// ModeBulkSerial numbers files in the order given and ignores matches.
	ModeBulkSerial
)

func (m Mode) String() string {
	if m == ModeBulkSerial {
		return "serial"
	}
	return "episode"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "episode":
		return ModeEpisode, nil
	case "serial", "bulk", "bulk-serial":
		return ModeBulkSerial, nil
	}
	return ModeEpisode, fmt.Errorf("unknown mode %q (want episode or serial)", s)
}

// Policy decides what happens when a target is held by a file that is not
// part of the plan.
type Policy int

const (
	// PolicyStrict rejects the rename.
	PolicyStrict Policy = iota
	// PolicyOverwrite runs the rename after everything else and replaces
	// the file.
	PolicyOverwrite
)

func (p Policy) String() string {
	if p == PolicyOverwrite {
		return "overwrite"
	}
	return "strict"
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "overwrite", "allow-overwrite-after-clear":
		return PolicyOverwrite, nil
	}
	return PolicyStrict, fmt.Errorf("unknown policy %q (want strict or overwrite)", s)
}

const (
	DefaultSerialBase  = 1
	DefaultSerialWidth = 2
)

type Options struct {
	Mode Mode
	// Template renders matched episodes. Defaults to naming.DefaultTemplate.
	Template *naming.Template
	// ShowTemplate, when set, renames entries whose show resolved but whose
	// episode did not.
	ShowTemplate *naming.Template
	Policy       Policy
	SerialPrefix string
	SerialBase   int
	SerialWidth  int
	// TitleCase applies naming.FormatTitle to show and episode names.
	TitleCase bool
	FS        FileSystem
	Logger    *logging.Logger
}

// DefaultOptions returns episode mode with the default template.
func DefaultOptions() Options {
	return Options{
		Mode:        ModeEpisode,
		Template:    naming.MustParseTemplate(naming.DefaultTemplate),
		Policy:      PolicyStrict,
		SerialBase:  DefaultSerialBase,
		SerialWidth: DefaultSerialWidth,
	}
}

// Item is one file handed to the planner.
type Item struct {
	EntryID int
	Source  string
	Match   matcher.Match
}

// Exclusion is an entry that gets no rename, with the reason.
type Exclusion struct {
	EntryID int    `json:"entry_id"`
	Source  string `json:"source"`
	Target  string `json:"target,omitempty"`
	Reason  string `json:"reason"`
}

// Plan is consumed once by the executor.
type Plan struct {
	Mode Mode `json:"mode"`
	// Renames lists the logical moves in input order.
	Renames []Rename `json:"renames"`
	// Steps lists the filesystem renames in execution order.
	Steps     []Step      `json:"steps"`
	Unmatched []Exclusion `json:"unmatched,omitempty"`
	// Unchanged entries already carry their target name.
	Unchanged []Exclusion `json:"unchanged,omitempty"`
	Rejected  []Exclusion `json:"rejected,omitempty"`
	Deferred  []Rename    `json:"deferred,omitempty"`
}

// Target returns the planned target of an entry.
func (p *Plan) Target(entryID int) (string, bool) {
	for _, r := range p.Renames {
		if r.EntryID == entryID {
			return r.Target, true
		}
	}
	return "", false
}

// Empty reports whether executing the plan would touch nothing.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}

type Planner struct {
	opts Options
}

func New(opts Options) *Planner {
	if opts.Template == nil {
		opts.Template = naming.MustParseTemplate(naming.DefaultTemplate)
	}
	if opts.SerialWidth <= 0 {
		opts.SerialWidth = DefaultSerialWidth
	}
	if opts.FS == nil {
		opts.FS = osFS{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Planner{opts: opts}
}

// Plan computes target paths and an execution order. It fails with a
// *PlanningError when the targets are not pairwise distinct or serial
// numbering would overflow.
func (p *Planner) Plan(items []Item) (*Plan, error) {
	plan := &Plan{Mode: p.opts.Mode}

	var candidates []Rename
	var err error
	switch p.opts.Mode {
	case ModeBulkSerial:
		candidates, err = p.serialTargets(items)
	default:
		candidates, err = p.episodeTargets(items, plan)
	}
	if err != nil {
		return nil, err
	}

	// Entries that keep their name still claim it.
	if err := checkDistinct(candidates); err != nil {
		return nil, err
	}

	var renames []Rename
	for _, r := range candidates {
		if r.Source == r.Target {
			plan.Unchanged = append(plan.Unchanged, Exclusion{
				EntryID: r.EntryID, Source: r.Source, Target: r.Target, Reason: "already named",
			})
			continue
		}
		renames = append(renames, r)
	}

	ordering, err := Order(renames, p.opts.FS, p.opts.Policy)
	if err != nil {
		return nil, err
	}

	rejected := make(map[int]bool, len(ordering.Rejected))
	for _, r := range ordering.Rejected {
		rejected[r.EntryID] = true
		plan.Rejected = append(plan.Rejected, Exclusion{
			EntryID: r.EntryID, Source: r.Source, Target: r.Target, Reason: "target is occupied",
		})
	}
	deferred := make(map[int]bool, len(ordering.Deferred))
	for _, r := range ordering.Deferred {
		deferred[r.EntryID] = true
	}
	for _, r := range renames {
		if rejected[r.EntryID] {
			continue
		}
		r.Overwrite = deferred[r.EntryID]
		plan.Renames = append(plan.Renames, r)
	}
	plan.Steps = ordering.Steps
	plan.Deferred = ordering.Deferred

	p.opts.Logger.Info("planner", "plan built",
		logging.F("mode", p.opts.Mode.String()),
		logging.F("renames", len(plan.Renames)),
		logging.F("steps", len(plan.Steps)),
		logging.F("unmatched", len(plan.Unmatched)),
		logging.F("rejected", len(plan.Rejected)))
	return plan, nil
}

func (p *Planner) episodeTargets(items []Item, plan *Plan) ([]Rename, error) {
	renames := make([]Rename, 0, len(items))
	for _, it := range items {
		source := filepath.Clean(it.Source)
		m := it.Match

		var name string
		switch {
		case m.Confidence == matcher.Exact:
			name = p.opts.Template.Render(p.values(m, source))
		case m.Confidence == matcher.None && m.Show != nil && p.opts.ShowTemplate != nil:
			name = p.opts.ShowTemplate.Render(p.values(m, source))
		default:
			reason := m.Reason
			if reason == "" {
				reason = "not matched"
			}
			plan.Unmatched = append(plan.Unmatched, Exclusion{EntryID: it.EntryID, Source: source, Reason: reason})
			continue
		}

		if emptyName(name, m.Hint.Ext) {
			return nil, &PlanningError{
				Err: ErrTemplate, Path: source, Entries: []int{it.EntryID},
				Detail: "template renders an empty name",
			}
		}
		renames = append(renames, Rename{
			EntryID: it.EntryID,
			Source:  source,
			Target:  filepath.Join(filepath.Dir(source), name),
		})
	}
	return renames, nil
}

func (p *Planner) values(m matcher.Match, source string) naming.Values {
	v := naming.Values{
		Ext:  m.Hint.Ext,
		Name: m.Hint.Stem,
	}
	if v.Name == "" {
		v.Name = strings.TrimSuffix(filepath.Base(source), v.Ext)
	}
	if m.Show != nil {
		v.Show = p.title(m.Show.Name)
		v.Year = m.Show.FirstAirYear
	}
	if m.Hint.Season != nil {
		v.Season = *m.Hint.Season
	}
	if m.Hint.Episode != nil {
		v.Episodes = m.Hint.Episode.Episodes()
	}
	for _, t := range m.Titles() {
		v.Titles = append(v.Titles, p.title(t))
	}
	return v
}

func (p *Planner) title(s string) string {
	if p.opts.TitleCase {
		return naming.FormatTitle(s)
	}
	return s
}

func (p *Planner) serialTargets(items []Item) ([]Rename, error) {
	if len(items) == 0 {
		return nil, nil
	}
	width := p.opts.SerialWidth
	base := p.opts.SerialBase
	if base < 0 {
		return nil, &PlanningError{Err: ErrSerialOverflow, Detail: fmt.Sprintf("negative base %d", base)}
	}
	last := base + len(items) - 1
	if len(strconv.Itoa(last)) > width {
		return nil, &PlanningError{
			Err:    ErrSerialOverflow,
			Detail: fmt.Sprintf("%d files from %d need index %d, wider than %d digits", len(items), base, last, width),
		}
	}

	prefix := naming.Sanitize(p.opts.SerialPrefix)
	renames := make([]Rename, 0, len(items))
	for i, it := range items {
		source := filepath.Clean(it.Source)
		ext := naming.Parse(source).Ext
		name := fmt.Sprintf("%s%0*d%s", prefix, width, base+i, ext)
		renames = append(renames, Rename{
			EntryID: it.EntryID,
			Source:  source,
			Target:  filepath.Join(filepath.Dir(source), name),
		})
	}
	return renames, nil
}

func emptyName(name, ext string) bool {
	base := filepath.Base(name)
	return strings.TrimSpace(name) == "" || base == "." || base == ext || base == string(filepath.Separator)
}

type osFS struct{}

func (osFS) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
