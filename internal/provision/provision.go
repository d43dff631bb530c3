// Package provision routes a path prefix of a CloudFront distribution to a
// backend origin: fetch, merge origin, merge behavior, submit.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/micahrl/cfroute/internal/config"
	"github.com/micahrl/cfroute/internal/distribution"
	"github.com/micahrl/cfroute/internal/functions"
	"github.com/micahrl/cfroute/internal/kvs"
	"github.com/micahrl/cfroute/internal/route"
	log "github.com/sirupsen/logrus"
)

var ErrValidation = errors.New("merged config failed validation")

// Clients bundles the remote APIs the pipeline talks to. Functions, Stores
// and KVS are only used when the corresponding option is configured.
type Clients struct {
	Distributions distribution.Client
	Functions     functions.FunctionDescriber
	Stores        functions.KVSARNResolver
	KVS           kvs.KVSClient
}

// Report describes what a run did.
type Report struct {
	DistributionID string
	ETag           string // ETag the merge was based on
	OriginID       string
	OriginAction   route.Action
	PathPattern    string
	BehaviorAction route.Action
	Shadowed       []string

	// Plan only.
	Changes []distribution.Change

	// Apply only.
	Result       *distribution.Result
	RegistryPlan *kvs.SyncPlan
}

// Run executes the pipeline. With dryRun set it stops after computing the
// diff and never writes anything.
func Run(ctx context.Context, cfg config.Config, clients Clients, dryRun bool) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	origin, err := route.NewOrigin(cfg.BackendDomain, cfg.Origin)
	if err != nil {
		return nil, err
	}
	functionARN := ""
	if name := cfg.Behavior.FunctionName; name != "" {
		log.Infof("Resolving function %s...", name)
		functionARN, err = functions.ResolveFunctionARN(ctx, clients.Functions, name)
		if err != nil {
			return nil, err
		}
	}
	behavior, err := route.NewBehavior(origin.ID, cfg.Behavior, functionARN)
	if err != nil {
		return nil, err
	}

	log.Infof("Fetching distribution config %s...", cfg.DistributionID)
	snap, err := distribution.Fetch(ctx, clients.Distributions, cfg.DistributionID)
	if err != nil {
		return nil, err
	}
	log.Infof("Current ETag: %s", snap.ETag)

	report := &Report{
		DistributionID: snap.ID,
		ETag:           snap.ETag,
		OriginID:       origin.ID,
		PathPattern:    behavior.PathPattern,
	}

	fetched, err := distribution.Clone(snap.Config)
	if err != nil {
		return nil, fmt.Errorf("copying fetched config: %w", err)
	}

	merged := snap.Config
	report.OriginAction = route.MergeOrigin(merged, origin.SDK())
	logAction("origin", origin.ID, report.OriginAction)

	report.BehaviorAction = route.MergeBehavior(merged, behavior.SDK())
	logAction("behavior", behavior.PathPattern, report.BehaviorAction)
	report.Shadowed = route.Shadowing(merged, behavior.PathPattern)
	for _, p := range report.Shadowed {
		log.WithField("pattern", p).Warnf("Behavior %s is listed earlier and also matches %s; it takes precedence", p, behavior.PathPattern)
	}

	if errs := route.Validate(merged); len(errs) > 0 {
		for _, e := range errs {
			log.WithField("key", e.Key).Error(e.Message)
		}
		return nil, fmt.Errorf("%w: %d problem(s), first: %s", ErrValidation, len(errs), errs[0])
	}

	routes := kvs.RoutingTable(merged)
	if cfg.Registry.KVSName != "" {
		if errs := routes.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("%w: route registry: %s", ErrValidation, errs[0])
		}
	}

	if dryRun {
		report.Changes, err = distribution.Diff(fetched, merged)
		if err != nil {
			return nil, fmt.Errorf("diffing configs: %w", err)
		}
		return report, nil
	}

	log.Info("Saving updated configuration...")
	log.WithField("path", cfg.ScratchFile).Debug("Scratch file")
	log.Info("Updating CloudFront distribution...")
	report.Result, err = distribution.Submit(ctx, clients.Distributions, snap, merged, cfg.ScratchFile)
	if err != nil {
		return nil, err
	}

	if cfg.Registry.KVSName != "" {
		report.RegistryPlan, err = syncRegistry(ctx, clients, cfg.Registry.KVSName, routes)
		if err != nil {
			return report, fmt.Errorf("distribution updated, route registry not: %w", err)
		}
	}

	return report, nil
}

func syncRegistry(ctx context.Context, clients Clients, name string, routes *kvs.Data) (*kvs.SyncPlan, error) {
	log.Infof("Resolving route registry %s...", name)
	arn, err := functions.ResolveKVSARN(ctx, clients.Stores, name)
	if err != nil {
		return nil, err
	}
	existing, etag, err := kvs.FetchExistingKeys(ctx, clients.KVS, arn)
	if err != nil {
		return nil, fmt.Errorf("fetching route registry: %w", err)
	}
	plan := kvs.ComputeSyncPlan(routes, existing)
	stats := routes.Stats()
	log.Infof("Route registry: %d puts, %d deletes (%d keys, %.1f%% of capacity)",
		len(plan.Puts), len(plan.Deletes), stats.NumKeys, stats.Percent())
	if err := kvs.Sync(ctx, clients.KVS, arn, etag, plan); err != nil {
		return nil, fmt.Errorf("syncing route registry: %w", err)
	}
	return plan, nil
}

func logAction(kind, key string, action route.Action) {
	if action == route.Replaced {
		log.Infof("The %s %s already exists, updating...", kind, key)
		return
	}
	log.Infof("Adding new %s %s...", kind, key)
}
