package schedcore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/fabricflow/schedcore/internal/workerpool"
)

// ExpandedMode is one (mode, presence) alternative for an expanded task,
// materialized by Expand (C4).
type ExpandedMode struct {
	Mode Mode
}

// ExpandedTask is one (instance, template task) pair's variable tuple: a
// start domain and the list of modes it may select among (§4.4 invariant
// 1-2).
type ExpandedTask struct {
	Key           ExpandedTaskKey
	EarliestStart Slot
	Modes         []ExpandedMode
	TemplateTask  TemplateTask
	Instance      Instance
}

// SymmetryGroup collects the first-task identities of instances that are
// interchangeable — same template, same earliest start, same priority — so
// the builder can chain start(x1) <= start(x2) <= ... and eliminate
// permutation symmetries among them (§4.4 "Symmetry breaking").
type SymmetryGroup struct {
	TemplateID    ID
	EarliestStart Slot
	Priority      int
	FirstTaskKeys []ExpandedTaskKey // ordered by instance id, one per instance in the group
}

// Expansion is C4's output: every expanded task plus the precomputed
// symmetry-breaking groups.
type Expansion struct {
	Tasks          map[ExpandedTaskKey]*ExpandedTask
	ByInstance     map[ID][]ExpandedTaskKey
	SymmetryGroups []SymmetryGroup
}

// Expand materializes template tasks x instances into the variable tuples
// C5 builds constraints over. Work is O(|T|*|J|*avg_modes): each
// template's tasks and precedences are read once from Problem.Templates and
// replicated per instance, never re-parsed (§4.4 complexity target).
func Expand(p *Problem) (*Expansion, error) {
	exp := &Expansion{
		Tasks:      make(map[ExpandedTaskKey]*ExpandedTask),
		ByInstance: make(map[ID][]ExpandedTaskKey, len(p.Instances)),
	}

	for _, inst := range p.Instances {
		tmpl, ok := p.Templates[inst.TemplateID]
		if !ok {
			return nil, NewModelBuildError(fmt.Sprintf("instance:%s", inst.ID), "template exists", nil)
		}
		keys := make([]ExpandedTaskKey, 0, len(tmpl.Tasks))
		for _, task := range tmpl.Tasks {
			key := ExpandedTaskKey{InstanceID: inst.ID, TemplateTaskID: task.ID}
			modes := make([]ExpandedMode, len(task.Modes))
			for i, m := range task.Modes {
				modes[i] = ExpandedMode{Mode: m}
			}
			exp.Tasks[key] = &ExpandedTask{
				Key:           key,
				EarliestStart: inst.EarliestStart,
				Modes:         modes,
				TemplateTask:  task,
				Instance:      inst,
			}
			keys = append(keys, key)
		}
		exp.ByInstance[inst.ID] = keys
	}

	exp.SymmetryGroups = buildSymmetryGroups(p, exp)
	return exp, nil
}

// buildSymmetryGroups groups instances of the same template sharing
// earliest-start and priority, and records the ordered key of each group
// member's first template task (by template task Position) — the variable
// the builder chains with <= (§4.4).
func buildSymmetryGroups(p *Problem, exp *Expansion) []SymmetryGroup {
	type groupKey struct {
		templateID    ID
		earliestStart Slot
		priority      int
	}

	members := make(map[groupKey][]Instance)
	for _, inst := range p.Instances {
		k := groupKey{inst.TemplateID, inst.EarliestStart, inst.Priority}
		members[k] = append(members[k], inst)
	}

	firstTaskID := make(map[ID]ID, len(p.Templates))
	for id, t := range p.Templates {
		if len(t.Tasks) == 0 {
			continue
		}
		ordered := append([]TemplateTask(nil), t.Tasks...)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
		firstTaskID[id] = ordered[0].ID
	}

	var groups []SymmetryGroup
	for k, insts := range members {
		if len(insts) < 2 {
			continue // no symmetry to break among a single instance
		}
		first := firstTaskID[k.templateID]
		if first == "" {
			continue
		}
		sorted := append([]Instance(nil), insts...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		keys := lo.Map(sorted, func(inst Instance, _ int) ExpandedTaskKey {
			return ExpandedTaskKey{InstanceID: inst.ID, TemplateTaskID: first}
		})
		groups = append(groups, SymmetryGroup{
			TemplateID:    k.templateID,
			EarliestStart: k.earliestStart,
			Priority:      k.priority,
			FirstTaskKeys: keys,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TemplateID != groups[j].TemplateID {
			return groups[i].TemplateID < groups[j].TemplateID
		}
		return groups[i].EarliestStart < groups[j].EarliestStart
	})
	return groups
}

// RecomputeCriticalPaths re-derives each template's critical-path bound in
// parallel, fanning out across internal/workerpool when there is more than
// one template. Problem.CriticalPath already holds these values from
// NewProblem; this entry point recomputes them against a (possibly mutated)
// template set without re-running full Problem validation.
func RecomputeCriticalPaths(templates map[ID]Template) map[ID]int {
	ids := lo.Keys(templates)
	sort.Strings(ids)

	results := make(map[ID]int, len(ids))
	if len(ids) <= 1 {
		for _, id := range ids {
			results[id] = templateCriticalPath(templates[id])
		}
		return results
	}

	var mu sync.Mutex
	pool := workerpool.New(len(ids))
	for _, id := range ids {
		id := id
		pool.Submit(func() {
			cp := templateCriticalPath(templates[id])
			mu.Lock()
			results[id] = cp
			mu.Unlock()
		})
	}
	pool.Wait()
	return results
}
