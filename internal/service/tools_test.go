package service

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gridsage/gridsage/internal/domain/conversation"
	"github.com/gridsage/gridsage/internal/domain/energy"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func interval(start, end time.Time, kwh, cost float64) energy.IntervalRecord {
	return energy.IntervalRecord{
		StartTS: start, EndTS: end, UsageKWh: kwh, Cost: cost,
		HasTimes: true, HasUsage: true, HasCost: true,
	}
}

func bill(start, end time.Time, kwh, cost float64) energy.BillingPeriod {
	return energy.BillingPeriod{
		StartDate: start, EndDate: end, UsageKWh: kwh, Cost: cost,
		HasDates: true, HasUsage: true, HasCost: true,
	}
}

// staticLoader serves a fixed snapshot.
type staticLoader struct {
	snap *energy.Snapshot
	err  error
}

func (l *staticLoader) Load(context.Context) (*energy.Snapshot, error) {
	return l.snap, l.err
}

func exampleSnapshot() *energy.Snapshot {
	return &energy.Snapshot{
		Intervals: []energy.IntervalRecord{
			interval(date(2024, 1, 1), date(2024, 1, 1).Add(time.Hour), 2, 0.40),
			interval(date(2024, 1, 15), date(2024, 1, 15).Add(time.Hour), 3, 0.60),
		},
		Bills: []energy.BillingPeriod{
			bill(date(2024, 1, 1), date(2024, 1, 31), 100, 20.00),
		},
	}
}

func TestUsageAndCostInRange(t *testing.T) {
	snap := exampleSnapshot()

	kwh, cost := UsageAndCostInRange(snap, date(2024, 1, 1), date(2024, 1, 10))
	if kwh != 2.0 || cost != 0.40 {
		t.Errorf("expected (2.0, 0.40), got (%v, %v)", kwh, cost)
	}

	kwh, cost = UsageAndCostInRange(snap, date(2024, 1, 1), date(2024, 1, 31))
	if kwh != 5.0 || cost != 1.0 {
		t.Errorf("expected (5.0, 1.00), got (%v, %v)", kwh, cost)
	}
}

func TestUsageAndCostInvertedRangeIsEmpty(t *testing.T) {
	snap := exampleSnapshot()
	kwh, cost := UsageAndCostInRange(snap, date(2024, 2, 1), date(2024, 1, 1))
	if kwh != 0 || cost != 0 {
		t.Errorf("inverted range must sum to zero, got (%v, %v)", kwh, cost)
	}
	if got := BillTotalInRange(snap, date(2024, 2, 1), date(2024, 1, 1)); got != 0 {
		t.Errorf("inverted range must sum to zero, got %v", got)
	}
}

func TestUsageAndCostEmptyTable(t *testing.T) {
	kwh, cost := UsageAndCostInRange(&energy.Snapshot{}, date(2024, 1, 1), date(2024, 12, 31))
	if kwh != 0 || cost != 0 {
		t.Errorf("empty table must sum to zero, got (%v, %v)", kwh, cost)
	}
}

func TestUsageAndCostClosedBoundaries(t *testing.T) {
	// Record ending exactly at the range start is included.
	endsAtStart := interval(date(2024, 1, 1), date(2024, 1, 5), 1, 0.10)
	// Record starting exactly at the range end is included.
	startsAtEnd := interval(date(2024, 1, 20), date(2024, 1, 25), 2, 0.20)
	snap := &energy.Snapshot{Intervals: []energy.IntervalRecord{endsAtStart, startsAtEnd}}

	kwh, cost := UsageAndCostInRange(snap, date(2024, 1, 5), date(2024, 1, 20))
	if kwh != 3 || cost != 0.30 {
		t.Errorf("closed boundaries must include both records, got (%v, %v)", kwh, cost)
	}
}

func TestUsageAndCostAdditiveOverDisjointRecords(t *testing.T) {
	records := []energy.IntervalRecord{
		interval(date(2024, 1, 1), date(2024, 1, 2), 1, 0.1),
		interval(date(2024, 1, 10), date(2024, 1, 11), 2, 0.2),
		interval(date(2024, 2, 1), date(2024, 2, 2), 4, 0.4),
	}
	snap := &energy.Snapshot{Intervals: records}
	start, end := date(2024, 1, 1), date(2024, 3, 1)

	var wantKWh, wantCost float64
	for _, r := range records {
		one := &energy.Snapshot{Intervals: []energy.IntervalRecord{r}}
		k, c := UsageAndCostInRange(one, start, end)
		wantKWh += k
		wantCost += c
	}

	kwh, cost := UsageAndCostInRange(snap, start, end)
	if kwh != wantKWh || cost != wantCost {
		t.Errorf("aggregation not additive: got (%v, %v), want (%v, %v)", kwh, cost, wantKWh, wantCost)
	}
}

func TestNullColumnsExcludedFromSums(t *testing.T) {
	noCost := interval(date(2024, 1, 1), date(2024, 1, 2), 5, 0)
	noCost.HasCost = false
	noTimes := interval(date(2024, 1, 3), date(2024, 1, 4), 100, 100)
	noTimes.HasTimes = false

	snap := &energy.Snapshot{Intervals: []energy.IntervalRecord{noCost, noTimes}}
	kwh, cost := UsageAndCostInRange(snap, date(2024, 1, 1), date(2024, 1, 31))
	if kwh != 5 {
		t.Errorf("expected usage 5 from the timed record only, got %v", kwh)
	}
	if cost != 0 {
		t.Errorf("null cost column must not contribute, got %v", cost)
	}
}

func TestBillTotalInRange(t *testing.T) {
	snap := exampleSnapshot()
	if got := BillTotalInRange(snap, date(2024, 1, 1), date(2024, 1, 31)); got != 20.00 {
		t.Errorf("expected 20.00, got %v", got)
	}
	// End date outside the range excludes the period.
	if got := BillTotalInRange(snap, date(2024, 1, 1), date(2024, 1, 30)); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	// End date exactly on both boundaries is included.
	if got := BillTotalInRange(snap, date(2024, 1, 31), date(2024, 1, 31)); got != 20.00 {
		t.Errorf("boundary end date must be included, got %v", got)
	}
}

func TestBillingSummaryFormat(t *testing.T) {
	snap := exampleSnapshot()
	lines := slices.Collect(BillingSummary(snap))
	want := []string{"Between 2024-01-01 and 2024-01-31, usage was 100.00 kWh with a total cost of $20.00"}
	if !slices.Equal(lines, want) {
		t.Errorf("got %v, want %v", lines, want)
	}
}

func TestBillingSummaryIdempotentAndRestartable(t *testing.T) {
	snap := exampleSnapshot()
	seq := BillingSummary(snap)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Errorf("restarted sequence differs: %v vs %v", first, second)
	}

	// Early break then restart still yields the full sequence.
	for range seq {
		break
	}
	if got := slices.Collect(seq); !slices.Equal(got, first) {
		t.Errorf("sequence not restartable after early break: %v", got)
	}
}

func TestBillingSummaryUnknownDates(t *testing.T) {
	b := bill(time.Time{}, time.Time{}, 10, 5)
	b.HasDates = false
	snap := &energy.Snapshot{Bills: []energy.BillingPeriod{b}}

	lines := slices.Collect(BillingSummary(snap))
	if len(lines) != 1 || !strings.Contains(lines[0], "unknown") {
		t.Errorf("null dates must render as unknown: %v", lines)
	}
}

func TestRegistryDispatchesTools(t *testing.T) {
	reg := NewToolRegistry(&staticLoader{snap: exampleSnapshot()})

	res := reg.Invoke(context.Background(), conversation.ToolRequest{
		CallID: "c1",
		Name:   ToolUsageAndCostInRange,
		Arguments: map[string]any{
			"start_date": "2024-01-01",
			"end_date":   "2024-01-10",
		},
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content)
	}
	if res.Content != `{"total_cost":0.4,"total_kwh":2}` {
		t.Errorf("unexpected content: %s", res.Content)
	}

	res = reg.Invoke(context.Background(), conversation.ToolRequest{
		CallID: "c2",
		Name:   ToolBillingSummary,
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content)
	}
	if !strings.Contains(res.Content, "usage was 100.00 kWh") {
		t.Errorf("unexpected summary: %s", res.Content)
	}
}

func TestRegistryContainsBadDate(t *testing.T) {
	reg := NewToolRegistry(&staticLoader{snap: exampleSnapshot()})
	res := reg.Invoke(context.Background(), conversation.ToolRequest{
		CallID: "c3",
		Name:   ToolBillTotalInRange,
		Arguments: map[string]any{
			"start_date": "yesterday",
			"end_date":   "2024-01-31",
		},
	})
	if !res.IsError {
		t.Fatal("expected contained error result for unparseable date")
	}
	if !strings.Contains(res.Content, "start_date") {
		t.Errorf("error should name the argument: %s", res.Content)
	}
}
