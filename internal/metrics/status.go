package metrics

import "sort"

// StatusBucket is the number of responses seen for one status and HTTP code.
// Code is 0 when no response was received (timeouts, transport errors).
type StatusBucket struct {
	Status Status `json:"status" yaml:"status"`
	Code   int    `json:"code" yaml:"code"`
	Count  int    `json:"count" yaml:"count"`
}

type bucketKey struct {
	status Status
	code   int
}

// flattenStatusBuckets converts the status/code tally into rows sorted by
// descending count, then status and code for stability.
func flattenStatusBuckets(buckets map[bucketKey]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(buckets))
	for key, count := range buckets {
		rows = append(rows, StatusBucket{Status: key.status, Code: key.code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Status == rows[j].Status {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Status < rows[j].Status
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
