// Package energy defines the canonical metering record types.
//
// Both record types carry per-column validity flags: ingestion coerces row
// anomalies (unparseable currency strings, unparseable date/time pairs) to a
// null marker instead of rejecting the row, and queries skip null columns
// when summing. This best-effort policy is deliberate and load-bearing.
package energy

import "time"

// IntervalRecord is one fine-grained metering window with its own usage and cost.
type IntervalRecord struct {
	StartTS  time.Time
	EndTS    time.Time
	UsageKWh float64
	Cost     float64

	// HasTimes is false when the DATE + TIME pair failed to parse; such a
	// record can never match a time-range query.
	HasTimes bool
	HasUsage bool
	HasCost  bool
}

// BillingPeriod is one invoicing cycle aggregating usage and cost over a date range.
type BillingPeriod struct {
	StartDate time.Time
	EndDate   time.Time
	UsageKWh  float64
	Cost      float64

	HasDates bool
	HasUsage bool
	HasCost  bool
}

// Snapshot is an immutable view of both record tables produced by one load.
// It must never be mutated after construction; concurrent readers share it
// without locking.
type Snapshot struct {
	Intervals []IntervalRecord
	Bills     []BillingPeriod
	LoadedAt  time.Time
}
