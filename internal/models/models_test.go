package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"valid", Task{Marketplace: "advego", TaskType: "click", Amount: decimal.RequireFromString("0.35")}, false},
		{"zero amount", Task{Marketplace: "advego", TaskType: "click"}, false},
		{"negative amount", Task{Marketplace: "advego", TaskType: "click", Amount: decimal.RequireFromString("-1")}, true},
		{"missing marketplace", Task{TaskType: "click"}, true},
		{"missing type", Task{Marketplace: "kwork"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.task.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExchangeAccountValidate(t *testing.T) {
	ok := ExchangeAccount{Marketplace: "fl", Login: "l", Password: "p", Status: AccountSuccess}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid account, got %v", err)
	}

	bad := ok
	bad.Status = "done"
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid status error")
	}

	bad = ok
	bad.Password = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected missing password error")
	}
}

func TestTotalBalance(t *testing.T) {
	got := TotalBalance([]Balance{
		{Balance: decimal.RequireFromString("0.35")},
		{Balance: decimal.RequireFromString("0.20")},
	})
	if !got.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("TotalBalance() = %s, want 0.55", got)
	}
}

func TestSortMarketplaces(t *testing.T) {
	got := SortMarketplaces([]Marketplace{"kwork", "advego", "fl"})
	want := []Marketplace{"advego", "fl", "kwork"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortMarketplaces() = %v, want %v", got, want)
		}
	}
}
