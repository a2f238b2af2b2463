package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStaticRates(t *testing.T) {
	ctx := context.Background()
	src := NewStatic()

	if _, err := src.Rate(ctx, "DFY", "USDT"); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("err = %v, want ErrRateUnavailable", err)
	}

	rate, err := src.Rate(ctx, "DFY", "dfy")
	if err != nil || !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("identity rate = %s, %v; want 1", rate, err)
	}

	src.Set("DFY", "USDT", decimal.NewFromInt(2))
	rate, err = src.Rate(ctx, "DFY", "USDT")
	if err != nil || !rate.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("rate = %s, %v; want 2", rate, err)
	}
	inverse, err := src.Rate(ctx, "usdt", "dfy")
	if err != nil || !inverse.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("inverse = %s, %v; want 0.5", inverse, err)
	}
}

func TestHTTPSourceRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("base") == "DFY" && r.URL.Query().Get("quote") == "USDT" {
			_ = json.NewEncoder(w).Encode(map[string]string{"rate": "0.5"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.Client(), srv.URL, "secret", nil)
	if err != nil {
		t.Fatalf("NewHTTPSource: %v", err)
	}

	rate, err := src.Rate(context.Background(), "DFY", "USDT")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("rate = %s, want 0.5", rate)
	}

	if _, err := src.Rate(context.Background(), "DFY", "EUR"); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("unknown pair err = %v, want ErrRateUnavailable", err)
	}
}

func TestHTTPSourceRejectsBadRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"rate": "0"})
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.Client(), srv.URL, "", nil)
	if err != nil {
		t.Fatalf("NewHTTPSource: %v", err)
	}
	if _, err := src.Rate(context.Background(), "A", "B"); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("err = %v, want ErrRateUnavailable for non-positive rate", err)
	}
}
