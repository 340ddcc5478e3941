package file

import "math"

// ComputeStats derives the storage-efficiency statistics from raw
// aggregates.
//
// Actual storage counts each payload once (owner sizes); theoretical
// storage is what the same population would occupy without deduplication
// (every record's size). Both ratios degrade to 100% on an empty store.
func ComputeStats(raw *RawStats) *StorageStats {
	stats := &StorageStats{
		TotalFiles:         raw.TotalFiles,
		UniqueFiles:        raw.TotalFiles - raw.DuplicateFiles,
		DuplicateFiles:     raw.DuplicateFiles,
		ActualStorage:      raw.OwnerBytes,
		TheoreticalStorage: raw.TotalBytes,
	}

	stats.OriginalityPercentage = 100.0
	if stats.TotalFiles > 0 {
		stats.OriginalityPercentage = round2(float64(stats.UniqueFiles) / float64(stats.TotalFiles) * 100)
	}

	stats.StorageEfficiency = 100.0
	if stats.TheoreticalStorage > 0 {
		stats.StorageEfficiency = round2(float64(stats.ActualStorage) / float64(stats.TheoreticalStorage) * 100)
	}

	// Owners without duplicates contribute nothing to the mean; a store
	// with no duplicated owner at all has factor 1 (every payload stored
	// exactly once).
	stats.AverageDuplicationFactor = 1.0
	if n := len(raw.DuplicateGroups); n > 0 {
		var sum int64
		for _, count := range raw.DuplicateGroups {
			sum += count
		}
		stats.AverageDuplicationFactor = round2(1 + float64(sum)/float64(n))
	}

	stats.TopDuplicated = make([]DuplicatedOwner, 0, len(raw.TopDuplicated))
	for _, entry := range raw.TopDuplicated {
		stats.TopDuplicated = append(stats.TopDuplicated, DuplicatedOwner{
			ID:                entry.Record.ID,
			OriginalFilename:  entry.Record.OriginalFilename,
			Size:              entry.Record.Size,
			DuplicateCount:    entry.DuplicateCount,
			TotalSizeSaved:    entry.Record.Size * entry.DuplicateCount,
			OriginalityFactor: round2(1 / float64(entry.DuplicateCount+1)),
		})
	}

	return stats
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
