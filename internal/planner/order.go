package planner

import (
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Phase tells whether a step moves a file straight to its target or through
// a temporary name.
type Phase int

const (
	PhaseDirect Phase = iota
	PhaseToTemp
	PhaseFromTemp
)

func (p Phase) String() string {
	switch p {
	case PhaseToTemp:
		return "to-temp"
	case PhaseFromTemp:
		return "from-temp"
	default:
		return "direct"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Rename is one logical source to target move.
type Rename struct {
	EntryID   int    `json:"entry_id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// Step is one filesystem rename. Steps must run in order.
type Step struct {
	EntryID   int    `json:"entry_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Phase     Phase  `json:"phase"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// Final reports whether the step lands the file at its final target.
func (s Step) Final() bool {
	return s.Phase != PhaseToTemp
}

// FileSystem answers whether a path is occupied.
type FileSystem interface {
	Exists(path string) bool
}

// Ordering is the result of Order.
type Ordering struct {
	Steps []Step
	// Rejected renames target a path held by something outside the set,
	// or a source that stays in place because its own rename was rejected.
	Rejected []Rename
	// Deferred renames overwrite an outside file and run last.
	Deferred []Rename
}

// TempSuffix marks the private names used to break rename cycles.
const TempSuffix = ".jrtmp"

// TempName returns a private temporary name next to path.
func TempName(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+"."+uuid.NewString()+TempSuffix)
}

// Order sequences renames so that no step lands on a path that is still
// occupied. A rename whose target is another rename's source runs after that
// source has moved away. Cycles go through temporary names: every member is
// moved aside first, then each is moved to its target. Targets held by files
// outside the set are rejected under PolicyStrict and deferred to the end
// under PolicyOverwrite. Renames whose target equals their source are
// dropped. Sources and targets must be distinct.
func Order(renames []Rename, fs FileSystem, policy Policy) (*Ordering, error) {
	list := make([]Rename, 0, len(renames))
	for _, r := range renames {
		r.Source = filepath.Clean(r.Source)
		r.Target = filepath.Clean(r.Target)
		if r.Source != r.Target {
			list = append(list, r)
		}
	}
	if err := checkDistinct(list); err != nil {
		return nil, err
	}

	n := len(list)
	bySource := make(map[string]int, n)
	for i, r := range list {
		bySource[r.Source] = i
	}

	// blocker[i] is the rename that currently occupies i's target, or -1.
	blocker := make([]int, n)
	// blocks[j] is the rename waiting for j to move away, or -1. Targets are
	// distinct, so there is at most one.
	blocks := make([]int, n)
	for i := range blocks {
		blocks[i] = -1
	}
	rejected := make([]bool, n)
	deferred := make([]bool, n)
	for i, r := range list {
		blocker[i] = -1
		if j, ok := bySource[r.Target]; ok {
			blocker[i] = j
			blocks[j] = i
			continue
		}
		if fs.Exists(r.Target) {
			if policy == PolicyOverwrite {
				deferred[i] = true
			} else {
				rejected[i] = true
			}
		}
	}

	// A rejected rename leaves its source in place, so whatever wanted that
	// source is rejected too. Likewise everything waiting on a deferred
	// rename runs in the deferred group.
	late := make([]bool, n)
	for i := 0; i < n; i++ {
		if rejected[i] {
			for j := blocks[i]; j >= 0 && !rejected[j]; j = blocks[j] {
				rejected[j] = true
			}
		}
		if deferred[i] {
			late[i] = true
			for j := blocks[i]; j >= 0 && !late[j]; j = blocks[j] {
				late[j] = true
			}
		}
	}

	out := &Ordering{}
	emitted := make([]bool, n)
	emit := func(i int) {
		r := list[i]
		out.Steps = append(out.Steps, Step{
			EntryID:   r.EntryID,
			From:      r.Source,
			To:        r.Target,
			Phase:     PhaseDirect,
			Overwrite: deferred[i],
		})
		emitted[i] = true
	}
	emitCycle := func(members []int) {
		temps := make([]string, len(members))
		for k, i := range members {
			temps[k] = TempName(list[i].Source)
			out.Steps = append(out.Steps, Step{
				EntryID: list[i].EntryID,
				From:    list[i].Source,
				To:      temps[k],
				Phase:   PhaseToTemp,
			})
		}
		for k, i := range members {
			out.Steps = append(out.Steps, Step{
				EntryID: list[i].EntryID,
				From:    temps[k],
				To:      list[i].Target,
				Phase:   PhaseFromTemp,
			})
			emitted[i] = true
		}
	}

	visit := func(start int) {
		// Walk toward the rename that must go first.
		var path []int
		onPath := make(map[int]int)
		i := start
		for i >= 0 && !emitted[i] {
			if at, seen := onPath[i]; seen {
				cycle := path[at:]
				sort.Ints(cycle)
				emitCycle(cycle)
				path = path[:at]
				break
			}
			onPath[i] = len(path)
			path = append(path, i)
			i = blocker[i]
		}
		for k := len(path) - 1; k >= 0; k-- {
			emit(path[k])
		}
	}

	for pass := 0; pass < 2; pass++ {
		for i := 0; i < n; i++ {
			if emitted[i] || rejected[i] || late[i] != (pass == 1) {
				continue
			}
			visit(i)
		}
	}

	for i, r := range list {
		switch {
		case rejected[i]:
			out.Rejected = append(out.Rejected, r)
		case deferred[i]:
			r.Overwrite = true
			out.Deferred = append(out.Deferred, r)
		}
	}
	return out, nil
}

func checkDistinct(renames []Rename) error {
	sources := make(map[string]int, len(renames))
	targets := make(map[string][]int, len(renames))
	var targetOrder []string
	for _, r := range renames {
		if first, ok := sources[r.Source]; ok {
			return &PlanningError{Err: ErrDuplicateSource, Path: r.Source, Entries: []int{first, r.EntryID}}
		}
		sources[r.Source] = r.EntryID
		if _, ok := targets[r.Target]; !ok {
			targetOrder = append(targetOrder, r.Target)
		}
		targets[r.Target] = append(targets[r.Target], r.EntryID)
	}
	for _, t := range targetOrder {
		if ids := targets[t]; len(ids) > 1 {
			return &PlanningError{Err: ErrDuplicateTarget, Path: t, Entries: ids}
		}
	}
	return nil
}
