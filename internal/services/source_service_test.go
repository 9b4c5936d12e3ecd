package services

import (
	"context"
	"errors"
	"testing"

	stripe "github.com/stripe/stripe-go/v72"
)

func newTestSourceService(gateway *fakeGateway, store *fakeStore) *SourceService {
	customers := NewCustomerService(gateway, store)
	return NewSourceService(gateway, customers, store, "https://portal.example.com")
}

func TestSourceCreatesForBank(t *testing.T) {
	gateway := newFakeGateway()
	store := newFakeStore()
	svc := newTestSourceService(gateway, store)

	enrollment := testEnrollment()
	source, err := svc.Source(context.Background(), enrollment, "rabobank")
	if err != nil {
		t.Fatalf("Source returned error: %v", err)
	}

	if gateway.createdSources != 1 {
		t.Errorf("created %d sources, want 1", gateway.createdSources)
	}
	if gateway.attachedSources != 1 {
		t.Errorf("attached %d sources, want 1", gateway.attachedSources)
	}
	if ref := store.sourceRefs[enrollment.ID]; ref != source.ID {
		t.Errorf("persisted source ref = %q, want %q", ref, source.ID)
	}
	if bank := sourceBank(source); bank != "rabobank" {
		t.Errorf("source bank = %q, want rabobank", bank)
	}
}

func TestSourceReusedWithoutBankFilter(t *testing.T) {
	gateway := newFakeGateway()
	store := newFakeStore()
	svc := newTestSourceService(gateway, store)

	// Even a consumed source is returned as-is when no bank is requested;
	// the caller decides what a non-chargeable source means.
	gateway.sources["src_old"] = &stripe.Source{
		ID:       "src_old",
		Status:   stripe.SourceStatusConsumed,
		TypeData: map[string]interface{}{"bank": "ing"},
	}
	enrollment := testEnrollment()
	existing := "src_old"
	enrollment.PaymentSource = &existing

	source, err := svc.Source(context.Background(), enrollment, "")
	if err != nil {
		t.Fatalf("Source returned error: %v", err)
	}
	if source.ID != "src_old" {
		t.Errorf("source = %q, want src_old", source.ID)
	}
	if gateway.createdSources != 0 {
		t.Error("no source may be created without a bank filter")
	}
}

func TestSourceReuseRules(t *testing.T) {
	tests := []struct {
		name     string
		existing *stripe.Source
		bank     string
		reused   bool
	}{
		{
			name: "pending source with matching bank is reused",
			existing: &stripe.Source{
				ID:       "src_old",
				Status:   stripe.SourceStatusPending,
				TypeData: map[string]interface{}{"bank": "rabobank"},
			},
			bank:   "rabobank",
			reused: true,
		},
		{
			name: "different bank forces a new source",
			existing: &stripe.Source{
				ID:       "src_old",
				Status:   stripe.SourceStatusPending,
				TypeData: map[string]interface{}{"bank": "ing"},
			},
			bank:   "rabobank",
			reused: false,
		},
		{
			name: "consumed source forces a new source",
			existing: &stripe.Source{
				ID:       "src_old",
				Status:   stripe.SourceStatusConsumed,
				TypeData: map[string]interface{}{"bank": "rabobank"},
			},
			bank:   "rabobank",
			reused: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gateway := newFakeGateway()
			store := newFakeStore()
			svc := newTestSourceService(gateway, store)

			gateway.sources[tc.existing.ID] = tc.existing
			enrollment := testEnrollment()
			existing := tc.existing.ID
			enrollment.PaymentSource = &existing

			source, err := svc.Source(context.Background(), enrollment, tc.bank)
			if err != nil {
				t.Fatalf("Source returned error: %v", err)
			}

			if tc.reused {
				if source.ID != tc.existing.ID {
					t.Errorf("source = %q, want reuse of %q", source.ID, tc.existing.ID)
				}
				if gateway.createdSources != 0 {
					t.Error("reuse must not create a new source")
				}
			} else {
				if source.ID == tc.existing.ID {
					t.Error("stale source was reused")
				}
				if gateway.createdSources != 1 {
					t.Errorf("created %d sources, want 1", gateway.createdSources)
				}
			}
		})
	}
}

func TestSourceMissingWithoutBank(t *testing.T) {
	svc := newTestSourceService(newFakeGateway(), newFakeStore())

	_, err := svc.Source(context.Background(), testEnrollment(), "")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Source error = %v, want ErrSourceNotFound", err)
	}
}

func TestSourceDanglingReferenceRecreated(t *testing.T) {
	gateway := newFakeGateway()
	store := newFakeStore()
	svc := newTestSourceService(gateway, store)

	enrollment := testEnrollment()
	gone := "src_gone"
	enrollment.PaymentSource = &gone

	source, err := svc.Source(context.Background(), enrollment, "ing")
	if err != nil {
		t.Fatalf("Source returned error: %v", err)
	}
	if source.ID == "src_gone" {
		t.Fatal("dangling source reference was returned instead of recreated")
	}
	if gateway.createdSources != 1 {
		t.Errorf("created %d sources, want 1", gateway.createdSources)
	}
}

func TestSourceRedirect(t *testing.T) {
	svc := newTestSourceService(newFakeGateway(), newFakeStore())

	tests := []struct {
		name   string
		source *stripe.Source
		want   string
	}{
		{
			name: "pending redirect with URL",
			source: &stripe.Source{
				Redirect: &stripe.RedirectFlow{Status: "pending", URL: "https://bank.example/pay"},
			},
			want: "https://bank.example/pay",
		},
		{
			name: "succeeded redirect",
			source: &stripe.Source{
				Redirect: &stripe.RedirectFlow{Status: "succeeded", URL: "https://bank.example/pay"},
			},
			want: "",
		},
		{
			name: "pending redirect without URL yet",
			source: &stripe.Source{
				Redirect: &stripe.RedirectFlow{Status: "pending"},
			},
			want: "",
		},
		{
			name:   "no redirect data",
			source: &stripe.Source{},
			want:   "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.SourceRedirect(tc.source); got != tc.want {
				t.Errorf("SourceRedirect = %q, want %q", got, tc.want)
			}
		})
	}
}
