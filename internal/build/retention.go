package build

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// SlotDir returns the build directory for one session under root.
func SlotDir(root, sessionID string) string {
	return filepath.Join(root, sessionID)
}

// SlotInfo holds metadata for retention decisions.
type SlotInfo struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// RetentionPolicy decides which build slots to keep.
type RetentionPolicy interface {
	Apply(slots []SlotInfo) (keep []SlotInfo)
}

// CountPolicy keeps the N most recent slots.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount slots (assumed sorted newest-first).
func (p *CountPolicy) Apply(slots []SlotInfo) []SlotInfo {
	if len(slots) <= p.MaxCount {
		return slots
	}
	return slots[:p.MaxCount]
}

// AgePolicy keeps slots newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
}

// Apply keeps slots whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(slots []SlotInfo) []SlotInfo {
	cutoff := time.Now().Add(-p.MaxAge)
	var keep []SlotInfo
	for _, s := range slots {
		if s.CreatedAt.After(cutoff) {
			keep = append(keep, s)
		}
	}
	return keep
}

// CompositePolicy keeps a slot if ANY sub-policy wants it (union).
type CompositePolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the union of slots kept by any sub-policy.
func (p *CompositePolicy) Apply(slots []SlotInfo) []SlotInfo {
	kept := make(map[string]bool)
	for _, policy := range p.Policies {
		for _, s := range policy.Apply(slots) {
			kept[s.Path] = true
		}
	}

	var result []SlotInfo
	for _, s := range slots {
		if kept[s.Path] {
			result = append(result, s)
		}
	}
	return result
}

// ListSlots scans root for build slots and returns them sorted newest-first.
// A slot is any directory holding a kernel source file.
func ListSlots(root string) ([]SlotInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading build root: %w", err)
	}

	var slots []SlotInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		src, err := os.Stat(filepath.Join(dir, SourceName))
		if err != nil {
			continue
		}

		slots = append(slots, SlotInfo{
			Path:      dir,
			Size:      dirSize(dir),
			CreatedAt: src.ModTime(),
		})
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].CreatedAt.After(slots[j].CreatedAt)
	})

	return slots, nil
}

// ApplyRetention deletes slots not kept by the policy. Slots listed in
// protected are never removed.
func ApplyRetention(root string, policy RetentionPolicy, protected ...string) (deleted []string, err error) {
	slots, err := ListSlots(root)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool, len(slots))
	for _, s := range policy.Apply(slots) {
		keepSet[s.Path] = true
	}
	for _, p := range protected {
		keepSet[filepath.Clean(p)] = true
	}

	for _, s := range slots {
		if keepSet[filepath.Clean(s.Path)] {
			continue
		}
		if err := os.RemoveAll(s.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(s.Path), err)
		}
		deleted = append(deleted, s.Path)
	}

	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
