package board

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// dateLayout is the calendar-date wire format used by trigger, due,
// expiry and archive dates.
const dateLayout = "2006-01-02"

// AutomationResult summarizes one sweep over the board.
type AutomationResult struct {
	ItemsTouched int
	RulesFired   int
	RulesSkipped int
}

// Automation applies due rules across the whole board. It is driven by
// a periodic ticker but safe to call at any time: each rule fires at
// most once per item, recorded in the item's applied-rule ledger.
type Automation struct {
	store  *Store
	logger zerolog.Logger

	// OnRuleFired, when set, observes every applied rule by action type.
	OnRuleFired func(action string)
}

// NewAutomation wires the sweep engine to a store.
func NewAutomation(store *Store, logger zerolog.Logger) *Automation {
	return &Automation{
		store:  store,
		logger: logger.With().Str("component", "automation").Logger(),
	}
}

// RunAll evaluates every item's rules against now and applies the due
// ones. A rule is due when its trigger date is on or before today (UTC
// calendar date). Malformed rules are skipped and stay unapplied.
func (a *Automation) RunAll(now time.Time) AutomationResult {
	var res AutomationResult

	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	today := now.UTC().Truncate(24 * time.Hour)
	for _, id := range a.store.order {
		item := a.store.items[id]
		fired, skipped := a.applyDueRules(item, today)
		res.RulesFired += fired
		res.RulesSkipped += skipped
		if fired > 0 {
			res.ItemsTouched++
		}
	}

	if res.RulesFired > 0 || res.RulesSkipped > 0 {
		a.logger.Info().
			Int("items_touched", res.ItemsTouched).
			Int("rules_fired", res.RulesFired).
			Int("rules_skipped", res.RulesSkipped).
			Msg("automation sweep complete")
	}
	return res
}

// applyDueRules mutates item in place under the store lock. Due rules
// apply in ascending trigger-date order so a later rule's assignment
// wins over an earlier one's.
func (a *Automation) applyDueRules(item *WorkItem, today time.Time) (fired, skipped int) {
	type due struct {
		rule AutomationRule
		date time.Time
	}
	var pending []due
	for _, r := range item.AutomationRules {
		if contains(item.AppliedRuleIDs, r.ID) {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, r.TriggerDate, time.UTC)
		if err != nil {
			a.logger.Warn().
				Str("item_id", item.ID).
				Str("rule_id", r.ID).
				Str("trigger_date", r.TriggerDate).
				Msg("unparseable trigger date, rule skipped")
			skipped++
			continue
		}
		if date.After(today) {
			continue
		}
		pending = append(pending, due{rule: r, date: date})
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].date.Before(pending[j].date)
	})

	for _, d := range pending {
		if !a.applyRule(item, d.rule) {
			skipped++
			continue
		}
		item.AppliedRuleIDs = append(item.AppliedRuleIDs, d.rule.ID)
		fired++
		if a.OnRuleFired != nil {
			a.OnRuleFired(string(d.rule.ActionType))
		}
	}
	return fired, skipped
}

// applyRule performs the rule's assignment. A false return means the
// rule payload did not validate; it is not added to the ledger so a fix
// to the item can still make it fire later.
func (a *Automation) applyRule(item *WorkItem, r AutomationRule) bool {
	switch r.ActionType {
	case ActionSetStatus:
		status, ok := ParseStatus(r.NewValue)
		if !ok {
			a.logger.Warn().
				Str("item_id", item.ID).
				Str("rule_id", r.ID).
				Str("new_value", r.NewValue).
				Msg("invalid status value, rule skipped")
			return false
		}
		item.Status = status
	case ActionSetPriority:
		priority, ok := ParsePriority(r.NewValue)
		if !ok {
			a.logger.Warn().
				Str("item_id", item.ID).
				Str("rule_id", r.ID).
				Str("new_value", r.NewValue).
				Msg("invalid priority value, rule skipped")
			return false
		}
		item.Priority = priority
	case ActionArchive:
		item.Status = StatusArchived
	default:
		return false
	}

	a.logger.Info().
		Str("item_id", item.ID).
		Str("rule_id", r.ID).
		Str("action", string(r.ActionType)).
		Str("new_value", r.NewValue).
		Msg("automation rule fired")
	return true
}
