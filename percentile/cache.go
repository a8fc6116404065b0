package percentile

import (
	"sort"
	"sync"

	"github.com/tucuxi-go/pkengine/core"
)

// cachedEntry is one previously computed Percentiles response, keyed
// under one cacheKey alongside every other entry computed with the same
// drug model, treatment, ranks, prediction type, and compartments option
// but possibly different windows or points-per-hour, per §4.7.
type cachedEntry struct {
	pointsPerHour float64
	response      core.ComputingResponse
}

// cycles returns this entry's cycle grid, shared across every rank since
// cycle boundaries depend only on the intake series, not the BSV draw.
func (e cachedEntry) cycles() []core.CycleData {
	payload, ok := e.response.Payload.(core.PercentilesPayload)
	if !ok || len(payload.PerRankCycles) == 0 {
		return nil
	}
	return payload.PerRankCycles[0]
}

// Cache implements core.PercentileCache (C9): a single coarse lock guards
// a per-key list of previously computed payloads, looked up by the §4.7
// window-coverage contract before falling back to the engine.
type Cache struct {
	mu             sync.Mutex
	entries        map[string][]cachedEntry
	isLastCallAHit bool
}

// NewCache builds an empty percentile Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]cachedEntry)}
}

// IsLastCallAHit reports whether the most recent Get call found full
// coverage, per §4.7's isLastCallAHit flag.
func (c *Cache) IsLastCallAHit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLastCallAHit
}

// Get implements core.PercentileCache.
func (c *Cache) Get(cacheKey string, params core.PercentileRunParams) (core.ComputingResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start, end, pph := params.Window.Start, params.Window.End, params.PointsPerHour
	candidates := c.entries[cacheKey]

	for _, entry := range candidates {
		if entry.pointsPerHour < pph {
			continue
		}
		cycles := entry.cycles()
		if len(cycles) == 0 {
			continue
		}
		if !cycles[0].Start.After(start) && !cycles[len(cycles)-1].End.Before(end) {
			c.isLastCallAHit = true
			return entry.response.Clone(), true
		}
	}

	index := buildIndex(candidates, start, end, pph)
	if !indexCovers(index, start, end) {
		c.isLastCallAHit = false
		return core.ComputingResponse{}, false
	}
	resp, err := synthesize(params, index)
	if err != nil {
		c.isLastCallAHit = false
		return core.ComputingResponse{}, false
	}
	c.isLastCallAHit = true
	return resp, true
}

// Put implements core.PercentileCache: it stores a deep copy of resp
// under cacheKey for later Get calls.
func (c *Cache) Put(cacheKey string, params core.PercentileRunParams, resp core.ComputingResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey] = append(c.entries[cacheKey], cachedEntry{
		pointsPerHour: params.PointsPerHour,
		response:      resp.Clone(),
	})
}

// indexPoint is one (entry, cycle-index) pair ordered by the cycle's
// start instant, per §4.7's index-building step.
type indexPoint struct {
	entry      cachedEntry
	cycleIndex int
	start, end core.Instant
}

// buildIndex gathers every overlapping cycle from entries with
// pointsPerHour >= pph into one vector ordered by cycle-start, dropping
// insertions whose cycle-start duplicates an entry already in the index
// (documented in §9 as a kept, not-guessed-around, simplification).
func buildIndex(candidates []cachedEntry, start, end core.Instant, pph float64) []indexPoint {
	var points []indexPoint
	seenStarts := make(map[int64]bool)
	for _, entry := range candidates {
		if entry.pointsPerHour < pph {
			continue
		}
		for i, cycle := range entry.cycles() {
			if cycle.End.Before(start) || !cycle.Start.Before(end) {
				continue
			}
			key := cycle.Start.Time().UnixNano()
			if seenStarts[key] {
				continue
			}
			seenStarts[key] = true
			points = append(points, indexPoint{entry: entry, cycleIndex: i, start: cycle.Start, end: cycle.End})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].start.Before(points[j].start) })
	return points
}

// indexCovers reports whether index fully covers [start, end] with
// contiguous, gap-free cycles, per §4.7.
func indexCovers(index []indexPoint, start, end core.Instant) bool {
	if len(index) == 0 {
		return false
	}
	if index[0].start.After(start) {
		return false
	}
	if index[len(index)-1].end.Before(end) {
		return false
	}
	for i := 0; i < len(index)-1; i++ {
		if !index[i].end.Equal(index[i+1].start) {
			return false
		}
	}
	return true
}

// synthesize concatenates the index's cycles into one per-rank
// CycleData slice, per §4.7's "synthesize a payload concatenating those
// cycles".
func synthesize(params core.PercentileRunParams, index []indexPoint) (core.ComputingResponse, error) {
	numRanks := len(params.Ranks)
	perRank := make([][]core.CycleData, numRanks)
	for r := range perRank {
		perRank[r] = make([]core.CycleData, 0, len(index))
	}
	var compartments []core.CompartmentDescriptor

	for _, pt := range index {
		payload, ok := pt.entry.response.Payload.(core.PercentilesPayload)
		if !ok {
			continue
		}
		if compartments == nil {
			compartments = payload.Compartments
		}
		for r := 0; r < numRanks && r < len(payload.PerRankCycles); r++ {
			cycles := payload.PerRankCycles[r]
			if pt.cycleIndex < len(cycles) {
				perRank[r] = append(perRank[r], cycles[pt.cycleIndex].Clone())
			}
		}
	}

	return core.ComputingResponse{
		Status: core.StatusOk,
		Payload: core.PercentilesPayload{
			Ranks:         append([]float64(nil), params.Ranks...),
			PerRankCycles: perRank,
			Compartments:  compartments,
		},
	}, nil
}
