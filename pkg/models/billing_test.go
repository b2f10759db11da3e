package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionResource_Validate(t *testing.T) {
	pi := func(status string) *InvoiceInfo {
		return &InvoiceInfo{ID: "in_1", PaymentIntent: &PaymentIntentInfo{ID: "pi_1", Status: status}}
	}
	tests := []struct {
		name    string
		res     *SubscriptionResource
		wantErr bool
	}{
		{"nil", nil, true},
		{"no id", &SubscriptionResource{Status: "active"}, true},
		{"no status", &SubscriptionResource{ID: "sub_1"}, true},
		{"intent without status", &SubscriptionResource{ID: "sub_1", Status: "incomplete", LatestInvoice: pi("")}, true},
		{"empty challenge", &SubscriptionResource{ID: "sub_1", Status: "incomplete", PendingAuthentication: &PendingAuthentication{}}, true},
		{"minimal", &SubscriptionResource{ID: "sub_1", Status: "active"}, false},
		{"with invoice", &SubscriptionResource{ID: "sub_1", Status: "active", LatestInvoice: pi("succeeded")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.res.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubscriptionResource_Challenge(t *testing.T) {
	tests := []struct {
		name       string
		res        SubscriptionResource
		wantAuth   bool
		wantSecret string
	}{
		{"settled", SubscriptionResource{ID: "s", Status: "active"}, false, ""},
		{
			"intent requires action",
			SubscriptionResource{LatestInvoice: &InvoiceInfo{PaymentIntent: &PaymentIntentInfo{Status: PaymentIntentRequiresAction, ClientSecret: "pi_secret"}}},
			true, "pi_secret",
		},
		{
			"explicit pending authentication wins",
			SubscriptionResource{
				PendingAuthentication: &PendingAuthentication{ClientSecret: "seti_secret"},
				LatestInvoice:         &InvoiceInfo{PaymentIntent: &PaymentIntentInfo{Status: PaymentIntentSucceeded, ClientSecret: "pi_secret"}},
			},
			true, "seti_secret",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAuth, tt.res.RequiresAuthentication())
			assert.Equal(t, tt.wantSecret, tt.res.ChallengeSecret())
		})
	}
}
