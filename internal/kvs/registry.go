package kvs

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// DefaultKey is the registry key of the distribution's default behavior.
const DefaultKey = "*"

// RoutingTable builds one entry per cache behavior of cfg, mapping its path
// pattern to the base URL of the origin that serves it. A behavior that
// targets an origin group maps to the group's primary member. Behaviors whose
// target is missing are skipped.
func RoutingTable(cfg *cftypes.DistributionConfig) *Data {
	bases := make(map[string]string)
	if cfg.Origins != nil {
		for _, o := range cfg.Origins.Items {
			bases[aws.ToString(o.Id)] = originBase(o)
		}
	}
	if cfg.OriginGroups != nil {
		for _, g := range cfg.OriginGroups.Items {
			if g.Members == nil || len(g.Members.Items) == 0 {
				continue
			}
			if base, ok := bases[aws.ToString(g.Members.Items[0].OriginId)]; ok {
				bases[aws.ToString(g.Id)] = base
			}
		}
	}

	d := &Data{}
	add := func(key, target string) {
		if base, ok := bases[target]; ok {
			d.Entries = append(d.Entries, Entry{Key: key, Value: base})
		}
	}
	if cfg.DefaultCacheBehavior != nil {
		add(DefaultKey, aws.ToString(cfg.DefaultCacheBehavior.TargetOriginId))
	}
	if cfg.CacheBehaviors != nil {
		for _, b := range cfg.CacheBehaviors.Items {
			add(aws.ToString(b.PathPattern), aws.ToString(b.TargetOriginId))
		}
	}
	return d
}

func originBase(o cftypes.Origin) string {
	scheme := "https"
	if c := o.CustomOriginConfig; c != nil && c.OriginProtocolPolicy == cftypes.OriginProtocolPolicyHttpOnly {
		scheme = "http"
	}
	return scheme + "://" + aws.ToString(o.DomainName) + aws.ToString(o.OriginPath)
}

// ComputeSyncPlan compares desired state against existing KVS state.
// existingKeys maps key -> value for all current KVS entries. Deletes are
// sorted so plans are reproducible.
func ComputeSyncPlan(desired *Data, existingKeys map[string]string) *SyncPlan {
	plan := &SyncPlan{}
	wanted := make(map[string]bool, len(desired.Entries))

	for _, e := range desired.Entries {
		wanted[e.Key] = true
		if v, ok := existingKeys[e.Key]; ok && v == e.Value {
			continue
		}
		plan.Puts = append(plan.Puts, e)
	}
	for key := range existingKeys {
		if !wanted[key] {
			plan.Deletes = append(plan.Deletes, key)
		}
	}
	sort.Strings(plan.Deletes)

	return plan
}

// batches splits the plan into groups of at most size operations, puts
// before deletes.
func (p *SyncPlan) batches(size int) []batch {
	var out []batch
	cur := batch{}
	flush := func() {
		if len(cur.puts)+len(cur.deletes) > 0 {
			out = append(out, cur)
			cur = batch{}
		}
	}
	for _, e := range p.Puts {
		if len(cur.puts)+len(cur.deletes) == size {
			flush()
		}
		cur.puts = append(cur.puts, e)
	}
	for _, k := range p.Deletes {
		if len(cur.puts)+len(cur.deletes) == size {
			flush()
		}
		cur.deletes = append(cur.deletes, k)
	}
	flush()
	return out
}
