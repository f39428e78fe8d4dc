package fanout

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
)

// Recipient one delivery target with the plan its policy is read from
type Recipient struct {
	ID       string
	Plan     model.Plan
	Operator bool
}

// resolve follows, collections and smart collections of the alert wallet, plus every active
// subscriber without any configuration. Only recipients holding an active plan are returned.
func (e *Engine) resolve(ctx context.Context, a *common.AlertCreated, now time.Time) ([]Recipient, error) {
	plans, err := e.subs.ActivePlans(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "active plans")
	}

	ids := make(map[string]struct{})
	add := func(list []string) {
		for _, id := range list {
			if _, ok := plans[id]; ok {
				ids[id] = struct{}{}
			}
		}
	}

	follows, err := e.subs.FollowRecipients(ctx, a.Wallet, a.Size, a.WhaleScore, a.EventKind())
	if err != nil {
		return nil, errors.Wrap(err, "follow recipients")
	}
	add(follows)

	collections, err := e.subs.CollectionRecipients(ctx, a.Wallet)
	if err != nil {
		return nil, errors.Wrap(err, "collection recipients")
	}
	add(collections)

	if e.opts.SmartCollections {
		smart, err := e.subs.SmartCollectionRecipients(ctx, a.Wallet)
		if err != nil {
			return nil, errors.Wrap(err, "smart collection recipients")
		}
		add(smart)
	}

	configured, err := e.subs.ConfiguredRecipients(ctx, e.opts.SmartCollections)
	if err != nil {
		return nil, errors.Wrap(err, "configured recipients")
	}
	for id := range plans {
		if _, ok := configured[id]; !ok {
			ids[id] = struct{}{}
		}
	}

	out := make([]Recipient, 0, len(ids)+1)
	for id := range ids {
		if id == e.opts.Operator {
			continue
		}
		out = append(out, Recipient{ID: id, Plan: plans[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return e.withOperator(out), nil
}

func (e *Engine) withOperator(list []Recipient) []Recipient {
	if e.opts.Operator == "" {
		return list
	}
	return append(list, Recipient{ID: e.opts.Operator, Operator: true})
}
