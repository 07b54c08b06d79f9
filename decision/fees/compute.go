package fees

import (
	"context"
	"time"

	perrors "portcall-cost/pkg/errors"
)

// Compute runs the regulatory components for a simple estimate request, in
// order: CBP, APHIS, California MISP, tonnage tax (when net tonnage is
// supplied) and marine exchange.
func (e *Engine) Compute(ctx context.Context, req EstimateContext) ([]LineItem, error) {
	if req.PortCode == "" {
		return nil, perrors.NewInvalidInputError("port_code", "port code is required")
	}
	if req.ArrivalDate.IsZero() {
		return nil, perrors.NewInvalidInputError("arrival_date", "arrival date is required")
	}
	port, err := e.getPort(ctx, req.PortCode)
	if err != nil {
		return nil, err
	}

	on := time.Date(req.ArrivalDate.Year(), req.ArrivalDate.Month(), req.ArrivalDate.Day(), 0, 0, 0, 0, time.UTC)
	ballasted := req.IsBallasted
	cc := callContext{
		on:          on,
		port:        port,
		arrival:     req.ResolvedArrivalType(),
		previous:    req.PreviousPortCode,
		netTonnage:  req.NetTonnage,
		ytdCBPPaid:  req.YTDCBPPaid,
		tonnagePaid: req.TonnageYearPaid,
		ballasted:   &ballasted,
		live:        e.prefetchLive(ctx, port),
	}

	steps := []func(context.Context, callContext) (FeeCalculation, error){e.cbp, e.aphis}
	if port.IsCalifornia {
		steps = append(steps, e.mispFee)
	}
	if req.NetTonnage.IsPositive() {
		steps = append(steps, e.tonnageTax)
	}
	steps = append(steps, e.marineExchange)

	calcs := make([]FeeCalculation, 0, len(steps))
	for _, step := range steps {
		c, err := step(ctx, cc)
		if err != nil {
			return nil, err
		}
		calcs = append(calcs, c)
	}
	if err := e.applyContract(ctx, calcs, on, port.Code); err != nil {
		return nil, err
	}

	items := make([]LineItem, len(calcs))
	for i, c := range calcs {
		details := make(map[string]any, len(c.Facts)+2)
		for k, v := range c.Facts {
			details[k] = v
		}
		details["note"] = c.Details
		details["source"] = c.Source
		items[i] = LineItem{Code: c.Code, Name: c.Name, Amount: c.FinalAmount, Details: details}
	}
	return items, nil
}
