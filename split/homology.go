package split

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"mrnabench/bencherr"
	"mrnabench/dataset"
	"mrnabench/logging"
)

// Method is the pairwise sequence similarity used for homology grouping.
type Method string

const (
	// MethodKmer approximates alignment with the Jaccard index of k-mer sets.
	MethodKmer Method = "kmer"
	// MethodLevenshtein is 1 - editDistance/max(len) with unit costs.
	MethodLevenshtein Method = "levenshtein"
)

// MaxK is the longest k-mer that fits the 2-bit packed profile.
const MaxK = 31

// HomologyOptions parameterise by-homology grouping. Two samples whose
// similarity is >= Threshold are linked; groups are the connected
// components of the resulting graph.
type HomologyOptions struct {
	Method    Method
	Threshold float64 // in (0, 1]
	K         int     // k-mer length for MethodKmer
	LinkGenes bool    // also link samples that share a gene annotation
	Workers   int     // goroutines scoring pairs; <= 1 runs inline
}

func (h HomologyOptions) validate() error {
	if !(h.Threshold > 0 && h.Threshold <= 1) {
		return bencherr.Configuration("homology threshold must be in (0, 1], got %v", h.Threshold)
	}
	switch h.Method {
	case MethodKmer:
		if h.K < 1 || h.K > MaxK {
			return bencherr.Configuration("k-mer length must be in [1, %d], got %d", MaxK, h.K)
		}
	case MethodLevenshtein:
	default:
		return bencherr.Configuration("unknown homology method %q", h.Method)
	}
	return nil
}

func (g *Grouper) homologyGroups(ds *dataset.Dataset, h HomologyOptions) ([]string, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	n := ds.Len()

	// Canonical order: sorted by sample ID, so the graph (and therefore every
	// key) is independent of the order samples arrive in.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ds.Samples[order[a]].ID < ds.Samples[order[b]].ID })

	seqs := make([]string, n)
	for pos, idx := range order {
		seqs[pos] = normalizeSeq(ds.Samples[idx].Sequence)
	}

	var scorer pairScorer
	switch h.Method {
	case MethodKmer:
		scorer = g.newKmerScorer(seqs, h.K, h.Threshold)
	case MethodLevenshtein:
		scorer = newLevenshteinScorer(seqs, h.Threshold)
	}
	edges := scoreAll(n, h.Workers, scorer)

	gr := simple.NewUndirectedGraph()
	for pos := 0; pos < n; pos++ {
		gr.AddNode(simple.Node(pos))
	}
	var edgeCount int
	link := func(a, b int) {
		if a == b || gr.HasEdgeBetween(int64(a), int64(b)) {
			return
		}
		gr.SetEdge(gr.NewEdge(simple.Node(a), simple.Node(b)))
		edgeCount++
	}
	for a, nbrs := range edges {
		for _, b := range nbrs {
			link(a, b)
		}
	}

	// Identical non-empty sequences are always homologous, even when shorter
	// than k.
	firstBySeq := make(map[string]int)
	firstByGene := make(map[string]int)
	for pos := 0; pos < n; pos++ {
		if s := seqs[pos]; s != "" {
			if first, ok := firstBySeq[s]; ok {
				link(first, pos)
			} else {
				firstBySeq[s] = pos
			}
		}
		if !h.LinkGenes {
			continue
		}
		if gene := ds.Samples[order[pos]].Gene; gene != "" {
			if first, ok := firstByGene[gene]; ok {
				link(first, pos)
			} else {
				firstByGene[gene] = pos
			}
		}
	}

	keys := make([]string, n)
	comps := topo.ConnectedComponents(gr)
	for _, comp := range comps {
		// The smallest canonical position holds the smallest ID.
		minPos := int64(n)
		for _, node := range comp {
			if node.ID() < minPos {
				minPos = node.ID()
			}
		}
		key := "hom:" + ds.Samples[order[minPos]].ID
		for _, node := range comp {
			keys[order[node.ID()]] = key
		}
	}

	g.log.Debug("homology groups built",
		zap.String(logging.DatasetKey, ds.Name),
		zap.Int(logging.SamplesKey, n),
		zap.Int(logging.EdgesKey, edgeCount),
		zap.Int(logging.GroupsKey, len(comps)),
		zap.String("homology.method", string(h.Method)),
		zap.Float64("homology.threshold", h.Threshold),
		zap.Duration(logging.DurationKey, time.Since(start)),
	)
	return keys, nil
}

// normalizeSeq upper-cases and maps DNA T to RNA U.
func normalizeSeq(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "T", "U")
}

// ---------------------- pair scoring ----------------------

// pairScorer returns, for canonical position a, the positions b > a whose
// similarity to a reaches the threshold. Implementations must be safe to
// call concurrently for distinct a; scratch state lives in the closure
// returned by worker().
type pairScorer interface {
	worker() func(a int) []int
}

// scoreAll runs the scorer over every position, fanning out to workers the
// same way the study runners do. Results are slotted by position, so the
// output does not depend on scheduling.
func scoreAll(n, workers int, s pairScorer) [][]int {
	out := make([][]int, n)
	if workers <= 1 {
		score := s.worker()
		for a := 0; a < n; a++ {
			out[a] = score(a)
		}
		return out
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			score := s.worker()
			for a := range jobs {
				out[a] = score(a)
			}
		}()
	}
	for a := 0; a < n; a++ {
		jobs <- a
	}
	close(jobs)
	wg.Wait()
	return out
}

// ---------------------- k-mer Jaccard ----------------------

type kmerScorer struct {
	profiles  [][]uint64
	index     map[uint64][]int
	threshold float64
}

func (g *Grouper) newKmerScorer(seqs []string, k int, threshold float64) *kmerScorer {
	ks := &kmerScorer{
		profiles:  make([][]uint64, len(seqs)),
		index:     make(map[uint64][]int),
		threshold: threshold,
	}
	for pos, s := range seqs {
		p := g.profile(s, k)
		ks.profiles[pos] = p
		for _, km := range p {
			ks.index[km] = append(ks.index[km], pos)
		}
	}
	return ks
}

// profile returns the sorted, de-duplicated 2-bit packed k-mers of s.
// k-mers containing a non-ACGU symbol are skipped.
func (g *Grouper) profile(s string, k int) []uint64 {
	key := strconv.Itoa(k) + ":" + s
	if v, ok := g.kmers.Get(key); ok {
		return v.([]uint64)
	}
	p := packKmers(s, k)
	g.kmers.Add(key, p)
	return p
}

func packKmers(s string, k int) []uint64 {
	if len(s) < k {
		return nil
	}
	mask := uint64(1)<<(2*uint(k)) - 1
	out := make([]uint64, 0, len(s)-k+1)
	var cur uint64
	valid := 0
	for i := 0; i < len(s); i++ {
		var code uint64
		switch s[i] {
		case 'A':
			code = 0
		case 'C':
			code = 1
		case 'G':
			code = 2
		case 'U':
			code = 3
		default:
			valid = 0
			cur = 0
			continue
		}
		cur = (cur<<2 | code) & mask
		valid++
		if valid >= k {
			out = append(out, cur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	uniq := out[:0]
	for _, v := range out {
		if len(uniq) == 0 || v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	return uniq
}

func (ks *kmerScorer) worker() func(a int) []int {
	mark := make([]int, len(ks.profiles))
	return func(a int) []int {
		pa := ks.profiles[a]
		if len(pa) == 0 {
			return nil
		}
		stamp := a + 1
		var cands []int
		for _, km := range pa {
			for _, b := range ks.index[km] {
				if b > a && mark[b] != stamp {
					mark[b] = stamp
					cands = append(cands, b)
				}
			}
		}
		sort.Ints(cands)

		var hits []int
		for _, b := range cands {
			if jaccard(pa, ks.profiles[b]) >= ks.threshold {
				hits = append(hits, b)
			}
		}
		return hits
	}
}

// jaccard of two sorted unique sets.
func jaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// ---------------------- edit distance ----------------------

var unitCosts = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

type levenshteinScorer struct {
	runes     [][]rune
	threshold float64
}

func newLevenshteinScorer(seqs []string, threshold float64) *levenshteinScorer {
	ls := &levenshteinScorer{runes: make([][]rune, len(seqs)), threshold: threshold}
	for i, s := range seqs {
		ls.runes[i] = []rune(s)
	}
	return ls
}

func (ls *levenshteinScorer) worker() func(a int) []int {
	return func(a int) []int {
		ra := ls.runes[a]
		if len(ra) == 0 {
			return nil
		}
		var hits []int
		for b := a + 1; b < len(ls.runes); b++ {
			rb := ls.runes[b]
			if len(rb) == 0 {
				continue
			}
			short, long := len(ra), len(rb)
			if short > long {
				short, long = long, short
			}
			// distance >= long-short, so similarity <= short/long.
			if float64(short)/float64(long) < ls.threshold {
				continue
			}
			if editSimilarity(ra, rb) >= ls.threshold {
				hits = append(hits, b)
			}
		}
		return hits
	}
}

func editSimilarity(a, b []rune) float64 {
	long := len(a)
	if len(b) > long {
		long = len(b)
	}
	if long == 0 {
		return 0
	}
	d := levenshtein.DistanceForStrings(a, b, unitCosts)
	return 1 - float64(d)/float64(long)
}
