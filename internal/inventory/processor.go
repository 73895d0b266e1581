// Package inventory reconciles product stock when an order is created.
package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/metrics"
	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
	"github.com/greenstem/order-pipeline/internal/store"
)

// Processor handles order-created events. It is idempotent under
// redelivery: the reservation record written at the end doubles as the
// processed marker checked at the start.
type Processor struct {
	st  store.Store
	met *metrics.Pipeline
	now func() time.Time
}

// New constructs a Processor. met may be nil in tests.
func New(st store.Store, met *metrics.Pipeline) *Processor {
	return &Processor{st: st, met: met, now: time.Now}
}

// HandleOrderCreated reserves stock for every line item of the order.
// Fulfillable items are decremented; insufficient or missing products are
// recorded on the reservation with a reason and the rest of the order
// proceeds. The policy for insufficient items is manual reconciliation;
// the order itself is not rejected here.
func (p *Processor) HandleOrderCreated(ctx context.Context, order model.Order) error {
	if order.ID == "" {
		return model.E(model.CodeInvalidArgument, "order id is required")
	}

	if _, err := p.st.Orders().GetReservation(ctx, order.ID); err == nil {
		obs.Logger.Info("order_already_processed", zap.String("order_id", order.ID))
		return nil
	} else if model.CodeOf(err) != model.CodeNotFound {
		return model.Wrap(model.CodeInternal, err, "processed-marker check")
	}

	ids := distinctProductIDs(order.Items)
	snapshots, err := p.st.Products().GetMulti(ctx, ids)
	if err != nil {
		return model.Wrap(model.CodeInternal, err, "batched product read")
	}

	outcomes := make([]model.ItemOutcome, 0, len(order.Items))
	var applied []model.LineItem
	for _, item := range order.Items {
		out := model.ItemOutcome{ProductID: item.ProductID, Quantity: item.Quantity}
		snap, ok := snapshots[item.ProductID]
		switch {
		case !ok:
			out.Reason = string(model.CodeNotFound)
		case snap.Stock < item.Quantity:
			out.Reason = string(model.CodeInsufficientStock)
		default:
			// The snapshot only partitions; the decrement below
			// re-checks stock atomically, so a concurrent order
			// racing this one flips the item to insufficient
			// instead of overdrawing.
			err := p.st.Products().DecrementStock(ctx, item.ProductID, item.Quantity)
			switch model.CodeOf(err) {
			case model.CodeInsufficientStock, model.CodeNotFound:
				out.Reason = string(model.CodeOf(err))
			case model.CodeInternal:
				p.compensate(ctx, order.ID, applied)
				return model.Wrap(model.CodeInternal, err, "stock decrement")
			default:
				out.Fulfilled = true
				applied = append(applied, item)
			}
		}
		if !out.Fulfilled {
			obs.Logger.Warn("insufficient_stock",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Int64("quantity", item.Quantity),
				zap.String("reason", out.Reason),
			)
		}
		p.countDecrement(out)
		outcomes = append(outcomes, out)
	}

	res := model.Reservation{OrderID: order.ID, Items: outcomes, ProcessedAt: p.now().UTC()}
	if err := p.st.Orders().PutReservation(ctx, res); err != nil {
		p.compensate(ctx, order.ID, applied)
		return model.Wrap(model.CodeInternal, err, "persist reservation")
	}
	return nil
}

// compensate returns stock taken by this invocation so an aborted run
// leaves no partial effect for the redelivery to double-count.
func (p *Processor) compensate(ctx context.Context, orderID string, applied []model.LineItem) {
	for _, item := range applied {
		if err := p.st.Products().IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			obs.Logger.Error("stock_compensation_failed",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID),
				zap.Int64("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (p *Processor) countDecrement(out model.ItemOutcome) {
	if p.met == nil {
		return
	}
	outcome := "fulfilled"
	if !out.Fulfilled {
		outcome = out.Reason
	}
	p.met.StockDecrements.WithLabelValues(outcome).Inc()
}

func distinctProductIDs(items []model.LineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
