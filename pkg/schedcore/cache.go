package schedcore

import (
	"hash/fnv"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Fingerprint identifies a Problem's structural shape (templates, instance
// counts, machine/cell topology, horizon). Due dates and priorities are not
// hashed directly, so two planning runs over the same shop floor whose order
// dates change without moving the horizon hit the same cache entry; a due
// date that changes the computed horizon changes the Fingerprint.
type Fingerprint uint64

// ComputeFingerprint hashes the structural features of p with FNV-1a over a
// sorted, delimited encoding — never map iteration order — so the same
// Problem always yields the same Fingerprint (§5 "stable across ordering").
func ComputeFingerprint(p *Problem) Fingerprint {
	h := fnv.New64a()
	write := func(s string) { h.Write([]byte(s)); h.Write([]byte{0}) }

	templateIDs := make([]string, 0, len(p.Templates))
	for id := range p.Templates {
		templateIDs = append(templateIDs, id)
	}
	sort.Strings(templateIDs)
	for _, id := range templateIDs {
		t := p.Templates[id]
		write("template:" + id)
		write("tasks:" + strconv.Itoa(len(t.Tasks)))
		write("precedences:" + strconv.Itoa(len(t.Precedences)))
		for _, task := range sortedTemplateTasks(t) {
			write("task:" + task.ID + ":modes:" + strconv.Itoa(len(task.Modes)))
		}
		edges := make([]string, 0, len(t.Precedences))
		for _, prec := range t.Precedences {
			edges = append(edges, prec.PredecessorTaskID+"->"+prec.SuccessorTaskID)
		}
		sort.Strings(edges)
		for _, e := range edges {
			write("edge:" + e)
		}
	}

	byTemplate := make(map[ID]int, len(p.Templates))
	for _, inst := range p.Instances {
		byTemplate[inst.TemplateID]++
	}
	for _, id := range templateIDs {
		write("instances_of:" + id + ":" + strconv.Itoa(byTemplate[id]))
	}

	machineIDs := make([]string, 0, len(p.Machines))
	for id := range p.Machines {
		machineIDs = append(machineIDs, id)
	}
	sort.Strings(machineIDs)
	for _, id := range machineIDs {
		m := p.Machines[id]
		write("machine:" + id + ":cap:" + strconv.Itoa(m.Capacity) + ":cell:" + m.CellID)
	}

	write("horizon:" + strconv.Itoa(p.Horizon))
	write("operator_capacity:" + strconv.Itoa(p.OperatorCapacity))

	return Fingerprint(h.Sum64())
}

func sortedTemplateTasks(t Template) []TemplateTask {
	out := append([]TemplateTask(nil), t.Tasks...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hint is a partial warm-start assignment the driver feeds to the engine
// before solving: a start-slot guess per expanded task, not a full solution.
type Hint struct {
	TaskStarts map[ExpandedTaskKey]Slot
}

// SolutionCache stores the most recent solved Solution per structural
// Fingerprint, bounded by an LRU of the given size (C9, §5). Reads return a
// deep copy (Solution.Clone) so a caller can never mutate cached state.
type SolutionCache struct {
	mu    sync.Mutex
	inner *lru.Cache[Fingerprint, *Solution]
}

// NewSolutionCache builds a cache holding up to size entries. size <= 0
// defaults to 100.
func NewSolutionCache(size int) *SolutionCache {
	if size <= 0 {
		size = 100
	}
	inner, _ := lru.New[Fingerprint, *Solution](size)
	return &SolutionCache{inner: inner}
}

// Get returns a cloned copy of the cached solution for fp, if any.
func (c *SolutionCache) Get(fp Fingerprint) (*Solution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sol, ok := c.inner.Get(fp)
	if !ok {
		return nil, false
	}
	return sol.Clone(), true
}

// Put stores a clone of sol under fp, evicting the least recently used entry
// if the cache is full.
func (c *SolutionCache) Put(fp Fingerprint, sol *Solution) {
	if sol == nil || (sol.Status != StatusOptimal && sol.Status != StatusFeasibleWithinLimit) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(fp, sol.Clone())
}

// HintsFor looks up the cached solution for fp and, if present, projects its
// task starts onto exp's current task set plus a bounded random perturbation
// seeded from seed — so a repeat solve with the same shape warm-starts near
// a known-good schedule without replaying it bit-for-bit (§5 "bounded
// perturbation"). Tasks absent from the cached solution (new instances since
// the cached run) are simply omitted from the hint.
func (c *SolutionCache) HintsFor(fp Fingerprint, exp *Expansion, seed uint64) []Hint {
	cached, ok := c.Get(fp)
	if !ok {
		return nil
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	starts := make(map[ExpandedTaskKey]Slot, len(cached.TaskPlacement))
	for _, key := range sortedKeys(exp) {
		placement, ok := cached.TaskPlacement[key]
		if !ok {
			continue
		}
		jitter := rng.Intn(3) - 1 // {-1, 0, 1} slots, never forces infeasibility on its own
		start := placement.Start + jitter
		if start < 0 {
			start = 0
		}
		starts[key] = start
	}
	if len(starts) == 0 {
		return nil
	}
	return []Hint{{TaskStarts: starts}}
}

// ApplyHint seeds the model's warm-start values from h, ignoring any task
// key the current expansion no longer has a variable for.
func (bm *BuiltModel) ApplyHint(h Hint) {
	for key, start := range h.TaskStarts {
		tv, ok := bm.Vars[key]
		if !ok {
			continue
		}
		bm.Model.AddHint(tv.start, int64(start))
	}
}
