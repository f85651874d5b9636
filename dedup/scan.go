package dedup

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// Entry is the per-object result of a Scan.
type Entry struct {
	Object s3types.StoredObject

	// MD5 is the stored content hash; empty when Skipped
	MD5 string

	Skipped bool
	Reason  string
}

// Group is a set of objects sharing one content hash.
type Group struct {
	MD5     string
	Objects []s3types.StoredObject
}

// Scan reads the stored MD5 of every object under the prefix. Only a failed
// listing or a cancelled context aborts the scan; unreadable objects come
// back as skipped entries. Entries keep listing order.
func (d *Detector) Scan(ctx context.Context) ([]Entry, error) {
	objects, err := d.list(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, obj := range objects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, reason := d.storedMD5(gctx, obj)
			entries[i] = Entry{Object: obj, MD5: hash, Skipped: reason != "", Reason: reason}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	skipped := 0
	for _, e := range entries {
		if e.Skipped {
			skipped++
			d.logger.Debug("scan skipped object", "key", e.Object.Key, "reason", e.Reason)
		}
	}
	metrics.Get().RecordScanSkipped(skipped)
	return entries, nil
}

// Statistics summarizes duplicated content under the prefix. Saved space
// counts every member of a group except the first.
func (d *Detector) Statistics(ctx context.Context) (s3types.DuplicateStats, error) {
	entries, err := d.Scan(ctx)
	if err != nil {
		return s3types.DuplicateStats{}, err
	}
	return Summarize(entries), nil
}

// Groups returns every content hash shared by more than one object, ordered
// by hash. Members keep listing order.
func (d *Detector) Groups(ctx context.Context) ([]Group, error) {
	entries, err := d.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return GroupEntries(entries), nil
}

// Summarize computes duplicate statistics from scan entries.
func Summarize(entries []Entry) s3types.DuplicateStats {
	stats := s3types.DuplicateStats{TotalFiles: len(entries)}
	for _, e := range entries {
		if e.Skipped {
			stats.Skipped++
		}
	}
	for _, g := range GroupEntries(entries) {
		extra := len(g.Objects) - 1
		stats.DuplicateGroups++
		stats.DuplicateFiles += extra
		stats.SavedSpace += int64(extra) * g.Objects[0].Size
	}
	return stats
}

// GroupEntries groups readable entries by hash and keeps groups with more
// than one member.
func GroupEntries(entries []Entry) []Group {
	byHash := make(map[string][]s3types.StoredObject)
	for _, e := range entries {
		if e.Skipped || e.MD5 == "" {
			continue
		}
		byHash[e.MD5] = append(byHash[e.MD5], e.Object)
	}

	var groups []Group
	for hash, objs := range byHash {
		if len(objs) > 1 {
			groups = append(groups, Group{MD5: hash, Objects: objs})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].MD5 < groups[j].MD5 })
	return groups
}
