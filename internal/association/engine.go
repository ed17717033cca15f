package association

import (
	"sort"

	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// Engine groups flat file lists into primary+associated clusters.
type Engine struct{}

// NewEngine creates an association engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Group clusters files into FileGroups. Every input file appears in exactly
// one output group; files no pass claims become single_file groups. Output
// order follows the first appearance of each group's primary in the input.
func (e *Engine) Group(files []types.GenomicsFile) []types.FileGroup {
	byPath := make(map[string]types.GenomicsFile, len(files))
	claimed := make(map[string]bool, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	var groups []types.FileGroup
	add := func(g types.FileGroup) {
		claimed[g.Primary.Path] = true
		for _, a := range g.Associated {
			claimed[a.Path] = true
		}
		sort.Slice(g.Associated, func(i, j int) bool {
			return g.Associated[i].Path < g.Associated[j].Path
		})
		groups = append(groups, g)
	}

	for _, g := range e.groupIndexSets(files, byPath, claimed) {
		add(g)
	}
	for _, g := range e.groupReferencePairs(files, claimed) {
		add(g)
	}
	for _, g := range e.groupReadSets(files, claimed) {
		add(g)
	}
	for _, g := range e.groupSuffixPairs(files, byPath, claimed) {
		add(g)
	}

	// Remaining files become singletons.
	for _, f := range files {
		if !claimed[f.Path] {
			add(types.FileGroup{Primary: f, GroupType: types.GroupSingleFile})
		}
	}
	return groups
}

// collectionMember is one file in a candidate index-set collection.
type collectionMember struct {
	file     types.GenomicsFile
	stripped bool
}

// groupIndexSets is pass 1: files sharing a normalized base name (index
// suffixes stripped) form one collection when at least two are present.
func (e *Engine) groupIndexSets(files []types.GenomicsFile, byPath map[string]types.GenomicsFile, claimed map[string]bool) []types.FileGroup {
	members := make(map[string][]collectionMember)
	var order []string

	for _, f := range files {
		if claimed[f.Path] {
			continue
		}
		base, stripped := normalizeIndexBase(f.Path)
		if _, seen := members[base]; !seen {
			order = append(order, base)
		}
		members[base] = append(members[base], collectionMember{file: f, stripped: stripped})
	}

	var groups []types.FileGroup
	for _, base := range order {
		set := members[base]
		if len(set) < 2 {
			continue
		}

		// A collection is only real when an index suffix was stripped
		// somewhere in the set; otherwise the shared base means the
		// caller passed duplicate paths.
		stripped := false
		for _, m := range set {
			if m.stripped {
				stripped = true
				break
			}
		}
		if !stripped {
			continue
		}

		primaryIdx := pickCollectionPrimary(set)
		primary := set[primaryIdx].file
		associated := make([]types.GenomicsFile, 0, len(set)-1)
		for i, m := range set {
			if i != primaryIdx {
				associated = append(associated, m.file)
			}
		}

		// A FASTA collection also owns its sequence dictionary, whose
		// name swaps the extension instead of appending a suffix.
		if ft, ok := filetype.BaseType(primary.Path); ok && ft == types.FileTypeFASTA {
			if dict, ok := byPath[dictPathFor(primary.Path)]; ok && !claimed[dict.Path] {
				already := false
				for _, a := range associated {
					if a.Path == dict.Path {
						already = true
						break
					}
				}
				if !already {
					associated = append(associated, dict)
				}
			}
		}

		groups = append(groups, types.FileGroup{
			Primary:    primary,
			Associated: associated,
			GroupType:  determineGroupType(primary, associated),
		})
	}
	return groups
}

// pickCollectionPrimary chooses the primary for an index-set collection:
// the original (non-index) file first, then the highest-priority index file,
// then the lexicographically smallest path.
func pickCollectionPrimary(set []collectionMember) int {
	best := -1
	bestRank := 1 << 30
	for i, m := range set {
		rank := primaryRank(m.file)
		if rank < bestRank || (rank == bestRank && m.file.Path < set[best].file.Path) {
			best, bestRank = i, rank
		}
	}
	return best
}

// primaryRank orders primary candidates: data files before index files, and
// among index files the canonical ones (fai, bai, crai) before the rest.
func primaryRank(f types.GenomicsFile) int {
	ft, ok := filetype.BaseType(f.Path)
	if !ok {
		return 100
	}
	switch filetype.Category(ft) {
	case types.CategorySequence:
		return 0
	case types.CategoryAlignment:
		return 1
	case types.CategoryVariant:
		return 2
	case types.CategoryAnnotation:
		return 3
	}
	switch ft {
	case types.FileTypeFAI, types.FileTypeBAI, types.FileTypeCRAI:
		return 10
	}
	return 20
}

// groupReferencePairs is pass 2: reference-store source and index resources
// sharing a reference ID are paired 1:1 when both are present.
func (e *Engine) groupReferencePairs(files []types.GenomicsFile, claimed map[string]bool) []types.FileGroup {
	type pair struct {
		source *types.GenomicsFile
		index  *types.GenomicsFile
	}
	pairs := make(map[string]*pair)
	var order []string

	for i := range files {
		f := files[i]
		if claimed[f.Path] {
			continue
		}
		prov, ok := f.Provenance.(types.ReferenceProvenance)
		if !ok {
			continue
		}
		p, seen := pairs[prov.ReferenceID]
		if !seen {
			p = &pair{}
			pairs[prov.ReferenceID] = p
			order = append(order, prov.ReferenceID)
		}
		switch prov.Source {
		case "source":
			p.source = &files[i]
		case "index":
			p.index = &files[i]
		}
	}

	var groups []types.FileGroup
	for _, id := range order {
		p := pairs[id]
		if p.source == nil || p.index == nil {
			continue
		}
		groups = append(groups, types.FileGroup{
			Primary:    *p.source,
			Associated: []types.GenomicsFile{*p.index},
			GroupType:  types.GroupReference,
		})
	}
	return groups
}

// groupReadSets is pass 3: files sharing a read-set ID cluster around the
// source1 slot, which carries the read-set provenance for the whole group.
func (e *Engine) groupReadSets(files []types.GenomicsFile, claimed map[string]bool) []types.FileGroup {
	type cluster struct {
		primary *types.GenomicsFile
		rest    []types.GenomicsFile
	}
	clusters := make(map[string]*cluster)
	var order []string

	for i := range files {
		f := files[i]
		if claimed[f.Path] {
			continue
		}
		prov, ok := f.Provenance.(types.ReadSetProvenance)
		if !ok {
			continue
		}
		c, seen := clusters[prov.ReadSetID]
		if !seen {
			c = &cluster{}
			clusters[prov.ReadSetID] = c
			order = append(order, prov.ReadSetID)
		}
		if prov.Source == "source1" {
			c.primary = &files[i]
		} else {
			c.rest = append(c.rest, f)
		}
	}

	var groups []types.FileGroup
	for _, id := range order {
		c := clusters[id]
		if c.primary == nil || len(c.rest) == 0 {
			continue
		}
		groups = append(groups, types.FileGroup{
			Primary:    *c.primary,
			Associated: c.rest,
			GroupType:  types.GroupReadSet,
		})
	}
	return groups
}

// groupSuffixPairs is pass 4: object-storage naming associations first, then
// the generic suffix-pair rule table, deduplicated against each other.
func (e *Engine) groupSuffixPairs(files []types.GenomicsFile, byPath map[string]types.GenomicsFile, claimed map[string]bool) []types.FileGroup {
	var groups []types.FileGroup

	for _, f := range files {
		if claimed[f.Path] || isSecondInPair(f.Path) {
			continue
		}

		seen := map[string]bool{f.Path: true}
		var associated []types.GenomicsFile

		collect := func(candidates []string) {
			for _, c := range candidates {
				if seen[c] {
					continue
				}
				seen[c] = true
				if other, ok := byPath[c]; ok && !claimed[c] {
					associated = append(associated, other)
				}
			}
		}

		collect(s3Associates(f.Path))
		for _, rule := range candidateRules(f.Path) {
			collect(rule.expandTemplates(f.Path))
		}
		collect(fastqMates(f.Path))

		if len(associated) == 0 {
			continue
		}

		group := types.FileGroup{
			Primary:    f,
			Associated: associated,
			GroupType:  determineGroupType(f, associated),
		}
		groups = append(groups, group)
		claimed[f.Path] = true
		for _, a := range associated {
			claimed[a.Path] = true
		}
	}
	return groups
}
