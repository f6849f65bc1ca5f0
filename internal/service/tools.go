package service

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/energy"
	"github.com/gridsage/gridsage/internal/port/toolcall"
)

// Tool names advertised to the reasoning engine.
const (
	ToolUsageAndCostInRange = "usageAndCostInRange"
	ToolBillTotalInRange    = "billTotalInRange"
	ToolBillingSummary      = "billingSummary"
)

// toolDateLayout is the ISO-8601 date format tool arguments use.
const toolDateLayout = "2006-01-02"

// SnapshotLoader supplies the current record-table snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context) (*energy.Snapshot, error)
}

// UsageAndCostInRange sums usage and cost over every interval record whose
// window overlaps [start, end], both boundaries inclusive:
// rec.EndTS >= start && rec.StartTS <= end. Columns coerced to null during
// ingestion are skipped per column. An empty match sums to zero.
func UsageAndCostInRange(snap *energy.Snapshot, start, end time.Time) (totalKWh, totalCost float64) {
	for _, rec := range snap.Intervals {
		if !rec.HasTimes {
			continue
		}
		if rec.EndTS.Before(start) || rec.StartTS.After(end) {
			continue
		}
		if rec.HasUsage {
			totalKWh += rec.UsageKWh
		}
		if rec.HasCost {
			totalCost += rec.Cost
		}
	}
	return totalKWh, totalCost
}

// BillTotalInRange sums cost over every billing period whose end date falls
// within the inclusive range [start, end]. An empty match sums to zero.
func BillTotalInRange(snap *energy.Snapshot, start, end time.Time) (totalCost float64) {
	for _, b := range snap.Bills {
		if !b.HasDates {
			continue
		}
		if b.EndDate.Before(start) || b.EndDate.After(end) {
			continue
		}
		if b.HasCost {
			totalCost += b.Cost
		}
	}
	return totalCost
}

// BillingSummary yields one formatted line per billing period in stored
// order. The sequence is lazy and restartable: each range re-derives from
// the snapshot, with no memoization.
func BillingSummary(snap *energy.Snapshot) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, b := range snap.Bills {
			if !yield(formatBillingLine(b)) {
				return
			}
		}
	}
}

// formatBillingLine renders a billing period. Dates coerced to null during
// ingestion render as "unknown"; null usage/cost render as 0.00.
func formatBillingLine(b energy.BillingPeriod) string {
	start, end := "unknown", "unknown"
	if b.HasDates {
		start = b.StartDate.Format(toolDateLayout)
		end = b.EndDate.Format(toolDateLayout)
	}
	return fmt.Sprintf("Between %s and %s, usage was %.2f kWh with a total cost of $%.2f",
		start, end, b.UsageKWh, b.Cost)
}

// NewToolRegistry builds the fixed tool registry over the given loader.
// The table is declarative and constructed once at startup; no reflection.
func NewToolRegistry(loader SnapshotLoader) *toolcall.Registry {
	dateArgs := []toolcall.ArgSpec{
		{Name: "start_date", Type: toolcall.ArgString, Description: "Start of the range, ISO-8601 (YYYY-MM-DD)", Required: true},
		{Name: "end_date", Type: toolcall.ArgString, Description: "End of the range, ISO-8601 (YYYY-MM-DD)", Required: true},
	}

	return toolcall.NewRegistry(
		toolcall.Spec{
			Name:        ToolUsageAndCostInRange,
			Description: "Total kWh usage and cost across interval readings overlapping the date range",
			Args:        dateArgs,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				start, end, err := parseRangeArgs(args)
				if err != nil {
					return "", err
				}
				snap, err := loader.Load(ctx)
				if err != nil {
					return "", err
				}
				kwh, cost := UsageAndCostInRange(snap, start, end)
				return marshalResult(map[string]float64{"total_kwh": kwh, "total_cost": cost})
			},
		},
		toolcall.Spec{
			Name:        ToolBillTotalInRange,
			Description: "Total cost of bills whose billing period ends within the date range",
			Args:        dateArgs,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				start, end, err := parseRangeArgs(args)
				if err != nil {
					return "", err
				}
				snap, err := loader.Load(ctx)
				if err != nil {
					return "", err
				}
				return marshalResult(map[string]float64{"total_cost": BillTotalInRange(snap, start, end)})
			},
		},
		toolcall.Spec{
			Name:        ToolBillingSummary,
			Description: "List every billing period with its usage and total cost",
			Handler: func(ctx context.Context, _ map[string]any) (string, error) {
				snap, err := loader.Load(ctx)
				if err != nil {
					return "", err
				}
				var lines []string
				for line := range BillingSummary(snap) {
					lines = append(lines, line)
				}
				if len(lines) == 0 {
					return "no billing periods on record", nil
				}
				return strings.Join(lines, "\n"), nil
			},
		},
	)
}

// parseRangeArgs parses the start_date/end_date pair of a range tool.
func parseRangeArgs(args map[string]any) (start, end time.Time, err error) {
	start, err = parseToolDate(args, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseToolDate(args, "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseToolDate(args map[string]any, name string) (time.Time, error) {
	s, _ := args[name].(string)
	t, err := time.Parse(toolDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not an ISO-8601 date", domain.ErrInvalidArgument, name, s)
	}
	return t, nil
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(data), nil
}
