package feedback

import "sort"

// Table is the authoritative map of feedback status records plus a secondary
// index by analysis id for partition-scoped reads. It holds plain data with
// no locking or I/O; the owning store serializes access.
type Table struct {
	records    map[string]Record
	byAnalysis map[string]map[string]struct{}
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		records:    make(map[string]Record),
		byAnalysis: make(map[string]map[string]struct{}),
	}
}

// Upsert inserts or fully replaces a record. Incremental events must go
// through the merge functions first; Upsert itself never inspects timestamps.
func (t *Table) Upsert(rec Record) {
	if prev, ok := t.records[rec.ID]; ok && prev.AnalysisID != rec.AnalysisID {
		t.removeFromIndex(prev.AnalysisID, rec.ID)
	}
	t.records[rec.ID] = rec

	ids, ok := t.byAnalysis[rec.AnalysisID]
	if !ok {
		ids = make(map[string]struct{})
		t.byAnalysis[rec.AnalysisID] = ids
	}
	ids[rec.ID] = struct{}{}
}

// Get fetches one record by id.
func (t *Table) Get(id string) (Record, bool) {
	rec, ok := t.records[id]
	return rec, ok
}

// ListByAnalysis returns the partition's records ordered by ascending
// feedback timestamp, with the record id as tie-break.
func (t *Table) ListByAnalysis(analysisID string) []Record {
	ids := t.byAnalysis[analysisID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]Record, 0, len(ids))
	for id := range ids {
		out = append(out, t.records[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampSeconds != out[j].TimestampSeconds {
			return out[i].TimestampSeconds < out[j].TimestampSeconds
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AnalysisIDs returns the ids of all partitions with at least one record.
func (t *Table) AnalysisIDs() []string {
	out := make([]string, 0, len(t.byAnalysis))
	for id := range t.byAnalysis {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear removes all records, or only the named partitions when given.
func (t *Table) Clear(analysisIDs ...string) {
	if len(analysisIDs) == 0 {
		t.records = make(map[string]Record)
		t.byAnalysis = make(map[string]map[string]struct{})
		return
	}
	for _, analysisID := range analysisIDs {
		for id := range t.byAnalysis[analysisID] {
			delete(t.records, id)
		}
		delete(t.byAnalysis, analysisID)
	}
}

// Len reports the total number of records across all partitions.
func (t *Table) Len() int {
	return len(t.records)
}

func (t *Table) removeFromIndex(analysisID, id string) {
	ids := t.byAnalysis[analysisID]
	if ids == nil {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(t.byAnalysis, analysisID)
	}
}
