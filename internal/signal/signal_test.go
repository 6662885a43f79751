package signal

import (
	"errors"
	"testing"
)

func TestAssetOf(t *testing.T) {
	asset, err := AssetOf("BTCUSDT", "USDT")
	if err != nil {
		t.Fatalf("AssetOf returned error: %v", err)
	}
	if asset != "BTC" {
		t.Fatalf("expected BTC, got %s", asset)
	}
}

func TestAssetOfUnsupportedPair(t *testing.T) {
	for _, symbol := range []string{"BTCBUSD", "USDT", ""} {
		_, err := AssetOf(symbol, "USDT")
		if err == nil {
			t.Fatalf("expected error for %q", symbol)
		}
		var unsupported ErrUnsupportedPair
		if !errors.As(err, &unsupported) {
			t.Fatalf("expected ErrUnsupportedPair, got %T", err)
		}
	}
}

func TestPairRoundTrip(t *testing.T) {
	if Pair("ETH", "USDT") != "ETHUSDT" {
		t.Fatalf("unexpected pair composition")
	}
}
