package market

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*BybitClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewBybitClient(server.URL)
	client.minInterval = 0
	return client, server
}

func TestGetKlinesSortsAscending(t *testing.T) {
	// Bybit returns newest first.
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/kline" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %s, want BTCUSDT", got)
		}
		w.Write([]byte(`{"retCode":0,"result":{"list":[
			["1704070800000","101","103","100","102","60","0"],
			["1704067200000","100","102","99","101","50","0"]
		]}}`))
	})
	defer server.Close()

	series, err := client.GetKlines("BTCUSDT", "60", 2)
	if err != nil {
		t.Fatalf("GetKlines: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("Len = %d, want 2", series.Len())
	}
	if !series.At(0).OpenTime.Before(series.At(1).OpenTime) {
		t.Error("candles not sorted ascending")
	}
	if series.At(0).Close != 101 || series.At(1).Close != 102 {
		t.Errorf("closes = %v, %v, want 101, 102", series.At(0).Close, series.At(1).Close)
	}
	if series.At(1).Volume != 60 {
		t.Errorf("volume = %v, want 60", series.At(1).Volume)
	}
}

func TestGetKlinesEmptyList(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})
	defer server.Close()

	if _, err := client.GetKlines("BTCUSDT", "60", 10); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestGetKlinesExchangeError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error"}`))
	})
	defer server.Close()

	if _, err := client.GetKlines("BTCUSDT", "60", 10); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestGetCurrentPrice(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","lastPrice":"65432.1"}]}}`))
	})
	defer server.Close()

	price, err := client.GetCurrentPrice("BTCUSDT")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if price != 65432.1 {
		t.Errorf("price = %v, want 65432.1", price)
	}
}

func TestGetCurrentPriceMissingTicker(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})
	defer server.Close()

	if _, err := client.GetCurrentPrice("NOPEUSDT"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestGetSymbolsFilters(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"result":{"list":[
			{"symbol":"BTCUSDT","status":"Trading","quoteCoin":"USDT"},
			{"symbol":"ETHUSDC","status":"Trading","quoteCoin":"USDC"},
			{"symbol":"OLDUSDT","status":"Closed","quoteCoin":"USDT"},
			{"symbol":"SOLUSDT","status":"Trading","quoteCoin":"USDT"}
		]}}`))
	})
	defer server.Close()

	symbols, err := client.GetSymbols("USDT")
	if err != nil {
		t.Fatalf("GetSymbols: %v", err)
	}
	want := []string{"BTCUSDT", "SOLUSDT"}
	if len(symbols) != len(want) {
		t.Fatalf("got %v, want %v", symbols, want)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("symbols[%d] = %s, want %s", i, symbols[i], want[i])
		}
	}
}

func TestGetInstrument(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"result":{"list":[
			{"symbol":"BTCUSDT","lotSizeFilter":{"qtyStep":"0.001","minOrderQty":"0.001"}}
		]}}`))
	})
	defer server.Close()

	inst, err := client.GetInstrument("BTCUSDT")
	if err != nil {
		t.Fatalf("GetInstrument: %v", err)
	}
	if inst.Symbol != "BTCUSDT" || inst.QtyStep != 0.001 || inst.MinQty != 0.001 {
		t.Errorf("instrument = %+v", inst)
	}
}

func TestGetInstrumentMissing(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})
	defer server.Close()

	if _, err := client.GetInstrument("NOPEUSDT"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestHTTPErrorWrapped(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	if _, err := client.GetCurrentPrice("BTCUSDT"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}
