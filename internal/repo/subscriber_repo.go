package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
)

var planRank = map[model.Plan]int{
	model.PlanFree:  1,
	model.PlanPro:   2,
	model.PlanElite: 3,
}

type SubscriberRepo interface {
	// ActivePlans plan per recipient holding an active or trialing subscription not yet expired
	ActivePlans(ctx context.Context, now time.Time) (map[string]model.Plan, error)

	// FollowRecipients recipients following wallet whose size/score/kind filters accept the alert
	FollowRecipients(ctx context.Context, wallet string, size decimal.Decimal, score int, kind common.ActionType) ([]string, error)

	// CollectionRecipients owners of enabled collections containing wallet
	CollectionRecipients(ctx context.Context, wallet string) ([]string, error)

	// SmartCollectionRecipients subscribers of enabled smart collections whose snapshot contains wallet
	SmartCollectionRecipients(ctx context.Context, wallet string) ([]string, error)

	// ConfiguredRecipients recipients with any follow, collection or (when smart) smart subscription
	ConfiguredRecipients(ctx context.Context, smart bool) (map[string]struct{}, error)
}

type subscriberRepoImpl struct {
	db *gorm.DB
}

func NewSubscriberRepo(db *gorm.DB) SubscriberRepo {
	return &subscriberRepoImpl{
		db: db,
	}
}

func (r *subscriberRepoImpl) ActivePlans(ctx context.Context, now time.Time) (map[string]model.Plan, error) {
	var subs []*model.Subscription

	err := r.db.WithContext(ctx).
		Where("status IN ? AND current_period_end > ?", []string{"active", "trialing"}, now).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}

	plans := make(map[string]model.Plan, len(subs))
	for _, s := range subs {
		plan := s.Plan
		if _, ok := planRank[plan]; !ok {
			plan = model.PlanFree
		}
		if cur, ok := plans[s.RecipientID]; ok && planRank[cur] >= planRank[plan] {
			continue
		}
		plans[s.RecipientID] = plan
	}
	return plans, nil
}

func (r *subscriberRepoImpl) FollowRecipients(ctx context.Context, wallet string, size decimal.Decimal, score int, kind common.ActionType) ([]string, error) {
	flag := "alert_entry"
	switch kind {
	case common.ActionExit:
		flag = "alert_exit"
	case common.ActionAdd:
		flag = "alert_add"
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&model.WhaleFollow{}).
		Where("enabled = ? AND LOWER(wallet) = LOWER(?)", true, wallet).
		Where("min_size <= ? AND min_score <= ?", size, score).
		Where(flag+" = ?", true).
		Distinct().
		Pluck("recipient_id", &ids).Error

	return ids, err
}

func (r *subscriberRepoImpl) CollectionRecipients(ctx context.Context, wallet string) ([]string, error) {
	var ids []string

	err := r.db.WithContext(ctx).
		Table("collection_whales AS cw").
		Joins("JOIN collections AS c ON c.id = cw.collection_id").
		Where("c.enabled = ? AND LOWER(cw.wallet) = LOWER(?)", true, wallet).
		Distinct().
		Pluck("c.recipient_id", &ids).Error

	return ids, err
}

func (r *subscriberRepoImpl) SmartCollectionRecipients(ctx context.Context, wallet string) ([]string, error) {
	var ids []string

	err := r.db.WithContext(ctx).
		Table("smart_collection_whales AS w").
		Joins("JOIN smart_collections AS sc ON sc.id = w.smart_collection_id").
		Joins("JOIN smart_collection_subscriptions AS s ON s.smart_collection_id = w.smart_collection_id").
		Where("sc.enabled = ? AND LOWER(w.wallet) = LOWER(?)", true, wallet).
		Distinct().
		Pluck("s.recipient_id", &ids).Error

	return ids, err
}

func (r *subscriberRepoImpl) ConfiguredRecipients(ctx context.Context, smart bool) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	collect := func(query *gorm.DB) error {
		var ids []string
		if err := query.Distinct().Pluck("recipient_id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			out[id] = struct{}{}
		}
		return nil
	}

	db := r.db.WithContext(ctx)
	if err := collect(db.Model(&model.WhaleFollow{}).Where("enabled = ?", true)); err != nil {
		return nil, err
	}
	if err := collect(db.Model(&model.Collection{}).Where("enabled = ?", true)); err != nil {
		return nil, err
	}
	if smart {
		if err := collect(db.Model(&model.SmartCollectionSubscription{})); err != nil {
			return nil, err
		}
	}
	return out, nil
}
