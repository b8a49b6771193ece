package lower

import (
	"sort"

	ir3err "github.com/tiledgpu/ir3c/internal/errors"
	"github.com/tiledgpu/ir3c/internal/ir"
)

// UBOLoadSite is one constant-index UBO load discovered by the analysis
// (spec.md §4.1 item 9 / Scenario C). Offsets and sizes are in bytes.
type UBOLoadSite struct {
	UBO        int
	ByteOffset uint32
	SizeBytes  uint32
}

// roundDownTo rounds v down to the nearest multiple of align (align must be
// nonzero), matching ir3_nir_analyze_ubo_ranges.c's ROUND_DOWN_TO macro.
func roundDownTo(v, align uint32) uint32 {
	return v - v%align
}

// alignUp rounds v up to the nearest multiple of align (align must be
// nonzero), matching ir3_nir_analyze_ubo_ranges.c's ALIGN macro.
func alignUp(v, align uint32) uint32 {
	if rem := v % align; rem != 0 {
		return v + (align - rem)
	}
	return v
}

// AnalyzeAndPromote merges per-UBO load sites into upload-plan ranges
// (spec.md §4.1 item 9 and Scenario C), respecting a scalar-component
// budget, and returns each site's resulting const-file scalar offset in the
// same order sites were given.
//
// Per-site alignment follows get_ubo_load_range in
// ir3_nir_analyze_ubo_ranges.c exactly: each load's own range is first
// rounded to the generation's const-upload-unit boundary (`r->start =
// ROUND_DOWN_TO(offset, alignment * 16)`, `r->end = ALIGN(offset + size,
// alignment * 16)`, where `alignment` is gen.Generation.ConstUploadUnit in
// vec4 units) *before* neighboring/overlapping sites are merged — not a
// single power-of-two floor computed from the merged cluster's raw start,
// which under-rounds and produces a narrower range than the real upload
// unit requires (spec.md §8 Scenario C: three vec4 loads at byte offsets
// 16/32/48 must merge to [start=0, end=64] given the a6xx/a7xx
// ConstUploadUnit of 4 vec4s (64 bytes), not [start=16, end=64]).
//
// Const-file offsets throughout this compiler are in scalar-component
// units (4 bytes each); a caller converting to vec4 units divides by 4.
func AnalyzeAndPromote(sites []UBOLoadSite, allocBase uint32, budgetScalars uint32, constUploadUnit uint32) ([]ir.UBORange, []uint32, error) {
	if constUploadUnit == 0 {
		constUploadUnit = 1
	}
	granularity := constUploadUnit * 16

	byUBO := map[int][]int{}
	for i, s := range sites {
		byUBO[s.UBO] = append(byUBO[s.UBO], i)
	}

	alignedStart := make([]uint32, len(sites))
	alignedEnd := make([]uint32, len(sites))
	for i, s := range sites {
		alignedStart[i] = roundDownTo(s.ByteOffset, granularity)
		alignedEnd[i] = alignUp(s.ByteOffset+s.SizeBytes, granularity)
	}

	var ranges []ir.UBORange
	offsets := make([]uint32, len(sites))
	cursor := allocBase

	ubos := make([]int, 0, len(byUBO))
	for u := range byUBO {
		ubos = append(ubos, u)
	}
	sort.Ints(ubos)

	for _, u := range ubos {
		idxs := byUBO[u]
		sort.Slice(idxs, func(a, b int) bool { return alignedStart[idxs[a]] < alignedStart[idxs[b]] })

		var curStart, curEnd uint32
		var curIdxs []int
		flush := func() error {
			if len(curIdxs) == 0 {
				return nil
			}
			sizeScalars := (curEnd - curStart) / 4
			if cursor+sizeScalars-allocBase > budgetScalars {
				return ir3err.NewResourceExhausted("ubo-promote", "UBO promotion budget exceeded")
			}
			rangeConstOff := cursor
			ranges = append(ranges, ir.UBORange{UBO: u, Start: curStart, End: curEnd, ConstOff: rangeConstOff})
			for _, idx := range curIdxs {
				s := sites[idx]
				offsets[idx] = rangeConstOff + (s.ByteOffset-curStart)/4
			}
			cursor += sizeScalars
			return nil
		}

		for _, idx := range idxs {
			start, end := alignedStart[idx], alignedEnd[idx]
			if len(curIdxs) == 0 {
				curStart, curEnd = start, end
				curIdxs = []int{idx}
				continue
			}
			if start <= curEnd { // overlapping or neighboring, per merge_neighbors
				curIdxs = append(curIdxs, idx)
				if end > curEnd {
					curEnd = end
				}
				continue
			}
			if err := flush(); err != nil {
				return nil, nil, err
			}
			curStart, curEnd = start, end
			curIdxs = []int{idx}
		}
		if err := flush(); err != nil {
			return nil, nil, err
		}
	}

	return ranges, offsets, nil
}

// RemainingBudget implements Open Question 2 of spec.md §9: the UBO
// promotion budget must reserve stream-out (TFBO) address space and
// driver-param space *before* computing what is left for promoted UBO
// ranges, for vertex-stage variants where both features are enabled — see
// DESIGN.md decision log entry 2.
func RemainingBudget(constFileScalarCap int, driverParamScalars, streamOutScalars int) uint32 {
	remaining := constFileScalarCap - driverParamScalars - streamOutScalars
	if remaining < 0 {
		return 0
	}
	return uint32(remaining)
}
