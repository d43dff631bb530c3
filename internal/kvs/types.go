package kvs

// Entry is a single key-value pair destined for CloudFront KVS.
type Entry struct {
	Key   string
	Value string
}

// Data holds all entries for a single KVS.
type Data struct {
	Entries []Entry
}

// SyncPlan lists the writes that bring a KVS to the desired state.
type SyncPlan struct {
	Puts    []Entry
	Deletes []string
}

// Empty reports whether the plan has nothing to write.
func (p *SyncPlan) Empty() bool {
	return len(p.Puts) == 0 && len(p.Deletes) == 0
}

// batch is one UpdateKeys call worth of work.
type batch struct {
	puts    []Entry
	deletes []string
}
