package grocery

import (
	"context"
	"log/slog"

	"github.com/CartMateCo/grocery-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("grocery-reconciler")

// Reconciler applies batches of action records to list snapshots. It is
// deliberately oracle-free: lookups use case-insensitive name equality only,
// so live reconciliation stays deterministic and never waits on a network
// call. Semantic equivalence belongs to the evaluation path.
type Reconciler struct {
	logger *slog.Logger
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{
		logger: logger.With("component", "reconciler"),
	}
}

// ApplyActions applies actions to currentList strictly in order and returns a
// new snapshot. The input is never mutated. Later records in the batch see
// the effects of earlier ones, so "add milk, remove milk" nets to no milk.
//
// Per record:
//   - add: existing item accumulates quantity; a supplied measurement
//     replaces the existing one. Missing items are appended with action add.
//   - remove: existing item is deleted regardless of quantity; missing items
//     are a logged no-op.
//   - modify: existing item's quantity is set (not accumulated); measurement
//     replaces only when supplied. Missing items are an implicit add — the
//     extractor often labels a first mention as modify when the user states a
//     quantity for a new item.
//   - anything else: logged and skipped.
//
// Items whose quantity ended at or below zero are pruned once, after the
// whole batch.
func (r *Reconciler) ApplyActions(ctx context.Context, currentList []GroceryItem, actions []ActionRecord) []GroceryItem {
	_, span := tracer.Start(ctx, "grocery.ApplyActions")
	defer span.End()

	result := CloneList(currentList)

	for _, record := range actions {
		action := record.NormalizedAction()
		switch action {
		case ActionAdd:
			result = r.applyAdd(result, record)
		case ActionRemove:
			result = r.applyRemove(result, record)
		case ActionModify:
			result = r.applyModify(result, record)
		default:
			telemetry.AddUnknownAction(ctx)
			r.logger.Warn("Skipping record with unknown action",
				"item", record.Item,
				"action", record.Action)
		}
	}

	return pruneEmpty(result)
}

func (r *Reconciler) applyAdd(list []GroceryItem, record ActionRecord) []GroceryItem {
	if i := FindItem(list, record.Item); i >= 0 {
		list[i].Quantity += record.Quantity
		if record.Measurement != nil {
			m := *record.Measurement
			list[i].Measurement = &m
		}
		return list
	}
	return append(list, newItem(record))
}

func (r *Reconciler) applyRemove(list []GroceryItem, record ActionRecord) []GroceryItem {
	i := FindItem(list, record.Item)
	if i < 0 {
		r.logger.Info("Remove for item not on list, ignoring", "item", record.Item)
		return list
	}
	return append(list[:i], list[i+1:]...)
}

func (r *Reconciler) applyModify(list []GroceryItem, record ActionRecord) []GroceryItem {
	i := FindItem(list, record.Item)
	if i < 0 {
		// Implicit add: tolerate the extractor labeling a fresh mention as
		// modify when the user meant to state a first quantity.
		r.logger.Debug("Modify for item not on list, treating as add", "item", record.Item)
		return append(list, newItem(record))
	}

	list[i].Quantity = record.Quantity
	if record.Measurement != nil {
		m := *record.Measurement
		list[i].Measurement = &m
	}
	return list
}

func newItem(record ActionRecord) GroceryItem {
	item := GroceryItem{
		Name:     record.Item,
		Quantity: record.Quantity,
		Action:   ActionAdd,
	}
	if record.Measurement != nil {
		m := *record.Measurement
		item.Measurement = &m
	}
	return item
}

// pruneEmpty is the only place zero-quantity items are dropped.
func pruneEmpty(list []GroceryItem) []GroceryItem {
	out := list[:0]
	for _, item := range list {
		if item.Quantity > 0 {
			out = append(out, item)
		}
	}
	return out
}
