package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/poec-forensics/console/cmd/poec/rest"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/proof"
	"github.com/poec-forensics/console/pkg/utils/try"
)

func TestAnchor(t *testing.T) {
	request := apiproof.AnchorRequest{
		Triplet: apiproof.Triplet{DataHash: "h1", ModelHash: "h2", ResultHash: "h3"},
		IpfsCid: "QmCid",
	}

	theory := func(status int, response map[string]any, then apiproof.AnchorResponse) func(*testing.T) {
		return func(t *testing.T) {
			testee := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/v1/anchor" {
					t.Errorf("request is not POST /api/v1/anchor (actual = %s %s)", r.Method, r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("unexpected content type: %s", ct)
				}
				body := map[string]string{}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatal(err)
				}
				expectedBody := map[string]string{
					"data_hash": "h1", "model_hash": "h2", "result_hash": "h3", "ipfs_cid": "QmCid",
				}
				for k, v := range expectedBody {
					if body[k] != v {
						t.Errorf("body[%s]: (actual, expected) = (%s, %s)", k, body[k], v)
					}
				}
				respondJson(t, w, status, response)
			}))

			actual := try.To(testee.Anchor(context.Background(), request)).OrFatal(t)
			if actual != then {
				t.Errorf("response: (actual, expected) = (%+v, %+v)", actual, then)
			}
		}
	}

	t.Run("a new record", theory(
		http.StatusOK,
		map[string]any{"status": "confirmed", "block_number": 42, "transaction_hash": "0xabc"},
		apiproof.AnchorResponse{Status: apiproof.StatusConfirmed, BlockNumber: 42, TransactionHash: "0xabc"},
	))
	t.Run("already anchored is not an error", theory(
		http.StatusOK,
		map[string]any{"status": "already_anchored", "message": "Hash already anchored"},
		apiproof.AnchorResponse{Status: apiproof.StatusAlreadyAnchored, Message: "Hash already anchored"},
	))

	t.Run("node unavailable is an error with detail", func(t *testing.T) {
		testee := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respondJson(t, w, http.StatusServiceUnavailable, map[string]any{"detail": "Blockchain node not connected"})
		}))
		_, err := testee.Anchor(context.Background(), request)
		var serr *rest.ServiceError
		if !errors.As(err, &serr) || serr.Detail() != "Blockchain node not connected" {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestVerify(t *testing.T) {
	t.Run("the record is returned as is", func(t *testing.T) {
		testee := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/verify/h3" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			respondJson(t, w, http.StatusOK, map[string]any{
				"verified": true, "timestamp": 1700000000, "ipfs_cid": "QmCid", "on_chain_hash": "0xh3",
			})
		}))
		actual := try.To(testee.Verify(context.Background(), "h3")).OrFatal(t)
		expected := apiproof.Verification{Verified: true, Timestamp: 1700000000, IpfsCid: "QmCid", OnChainHash: "0xh3"}
		if actual != expected {
			t.Errorf("(actual, expected) = (%+v, %+v)", actual, expected)
		}
	})

	t.Run("not found is a miss", func(t *testing.T) {
		testee := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respondJson(t, w, http.StatusNotFound, map[string]any{"detail": "Not Found"})
		}))
		_, err := testee.Verify(context.Background(), "h9")
		if !errors.Is(err, proof.ErrVerifyMiss) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestArchive(t *testing.T) {
	t.Run("archived summary", func(t *testing.T) {
		testee := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/ipfs/QmCid" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			respondJson(t, w, http.StatusOK, map[string]any{
				"summary":    map[string]any{"total_txs": 120, "total_volume": 5000.5},
				"metrics":    map[string]any{"anomalies_count": 3},
				"model_hash": "h2",
			})
		}))
		actual := try.To(testee.Archive(context.Background(), "QmCid")).OrFatal(t)
		if actual.Summary == nil || actual.Summary.TotalTxs != 120 || actual.Summary.TotalVolume != 5000.5 {
			t.Errorf("unexpected summary: %+v", actual.Summary)
		}
		if actual.AnomalyCount() != 3 || actual.ModelHash != "h2" {
			t.Errorf("unexpected archive: %+v", actual)
		}
	})

	t.Run("not found", func(t *testing.T) {
		testee := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respondJson(t, w, http.StatusNotFound, map[string]any{"detail": "Content not found in local IPFS node"})
		}))
		_, err := testee.Archive(context.Background(), "QmNothing")
		if !errors.Is(err, rest.ErrArchiveNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestLedgerStatus(t *testing.T) {
	testee := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/anchor/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		respondJson(t, w, http.StatusOK, map[string]any{
			"status": "connected", "network": "Sepolia Testnet",
			"wallet_address": "0xwallet", "contract_address": "0xcontract", "balance_eth": 1.5,
		})
	}))
	actual := try.To(testee.LedgerStatus(context.Background())).OrFatal(t)
	if !actual.Connected() || actual.Network != "Sepolia Testnet" || actual.BalanceEth != 1.5 {
		t.Errorf("unexpected status: %+v", actual)
	}
}
