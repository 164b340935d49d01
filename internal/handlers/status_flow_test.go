package handlers

import (
	"testing"

	"storefront/internal/models"
)

func TestNextStatusForwardOnly(t *testing.T) {
	if got := nextStatus(models.StatusPending, models.StatusShipped); got != models.StatusShipped {
		t.Errorf("forward move should apply, got %s", got)
	}
	if got := nextStatus(models.StatusShipped, models.StatusConfirmed); got != models.StatusShipped {
		t.Errorf("stale candidate must not regress status, got %s", got)
	}
	if got := nextStatus(models.StatusShipped, models.StatusShipped); got != models.StatusShipped {
		t.Errorf("same-rank candidate should be a no-op, got %s", got)
	}
	if got := nextStatus(models.StatusDelivered, models.StatusOutOfDelivery); got != models.StatusDelivered {
		t.Errorf("delivered order must not move backward, got %s", got)
	}
	if got := nextStatus(models.StatusConfirmed, "NONSENSE"); got != models.StatusConfirmed {
		t.Errorf("unknown candidate should be ignored, got %s", got)
	}
}

func TestNextStatusSkipsAhead(t *testing.T) {
	// A courier can report delivery before intermediate scans arrive.
	if got := nextStatus(models.StatusConfirmed, models.StatusDelivered); got != models.StatusDelivered {
		t.Errorf("skipping intermediate states is allowed, got %s", got)
	}
}

func TestCarrierStatusFor(t *testing.T) {
	cases := map[string]string{
		"Order Confirmed":   models.StatusConfirmed,
		"ready for pickup":  models.StatusShipped,
		"Handed to Courier": models.StatusShipped,
		"IN TRANSIT":        models.StatusShipped,
		"Out for Delivery":  models.StatusOutOfDelivery,
		"  delivered  ":     models.StatusDelivered,
	}
	for label, want := range cases {
		got, ok := carrierStatusFor(label)
		if !ok || got != want {
			t.Errorf("label %q: expected %s, got %s (ok=%v)", label, want, got, ok)
		}
	}

	if _, ok := carrierStatusFor("Customs Hold"); ok {
		t.Error("unlisted label should not map to a status")
	}
}

func TestStaleCarrierEventDoesNotRegress(t *testing.T) {
	candidate, ok := carrierStatusFor("shipped")
	if !ok {
		t.Fatal("shipped should map to a status")
	}
	if got := nextStatus(models.StatusOutOfDelivery, candidate); got != models.StatusOutOfDelivery {
		t.Errorf("late shipped scan must not pull order back, got %s", got)
	}
}

func TestIsFulfillmentStatus(t *testing.T) {
	for _, status := range []string{
		models.StatusPending,
		models.StatusConfirmed,
		models.StatusShipped,
		models.StatusOutOfDelivery,
		models.StatusDelivered,
		models.StatusCancelled,
	} {
		if !isFulfillmentStatus(status) {
			t.Errorf("%s should be a valid status", status)
		}
	}
	if isFulfillmentStatus("RETURNED") {
		t.Error("unknown status should be rejected")
	}
	if isFulfillmentStatus("") {
		t.Error("empty status should be rejected")
	}
}

func TestOrderTerminalStates(t *testing.T) {
	cancelled := &models.Order{Status: models.StatusCancelled}
	if !cancelled.IsTerminal() {
		t.Error("cancelled order is terminal")
	}
	delivered := &models.Order{Status: models.StatusDelivered}
	if !delivered.IsTerminal() {
		t.Error("delivered order is terminal")
	}
	shipped := &models.Order{Status: models.StatusShipped}
	if shipped.IsTerminal() {
		t.Error("shipped order is not terminal")
	}
}
