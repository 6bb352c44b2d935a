package rest_test

import (
	"context"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	prof "github.com/poec-forensics/console/cmd/poec/config/profiles"
	"github.com/poec-forensics/console/cmd/poec/rest"
	"github.com/poec-forensics/console/pkg/utils/try"
)

func TestNewClient(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cacert := base64.StdEncoding.EncodeToString(pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE", Bytes: server.Certificate().Raw,
	}))

	t.Run("it trusts the CA in the profile", func(t *testing.T) {
		testee := try.To(rest.NewClient(&prof.Profile{
			ApiRoot: server.URL, Cert: prof.Cert{CA: cacert},
		})).OrFatal(t)
		if err := testee.Ping(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("without the CA, TLS fails", func(t *testing.T) {
		testee := try.To(rest.NewClient(&prof.Profile{ApiRoot: server.URL})).OrFatal(t)
		if err := testee.Ping(context.Background()); err == nil {
			t.Error("unexpected success")
		}
	})

	t.Run("invalid profile is rejected", func(t *testing.T) {
		if _, err := rest.NewClient(&prof.Profile{ApiRoot: "not url"}); err == nil {
			t.Error("unexpected success")
		}
	})
}
