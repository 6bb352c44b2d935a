package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	prof "github.com/poec-forensics/console/cmd/poec/config/profiles"
	apianalysis "github.com/poec-forensics/console/pkg/api/types/analysis"
	apicontexts "github.com/poec-forensics/console/pkg/api/types/contexts"
	apiledger "github.com/poec-forensics/console/pkg/api/types/ledger"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/buildtime"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/proof"
	"github.com/poec-forensics/console/pkg/schema"
)

type PoecClient interface {
	// Ping checks the service root is reachable.
	//
	// Returns nil only for 2xx responses.
	Ping(ctx context.Context) error

	// GetContexts returns economic-context profiles and the active one.
	GetContexts(ctx context.Context) (apicontexts.Profiles, error)

	// SwitchContext activates the economic-context profile.
	SwitchContext(ctx context.Context, contextId string) (apicontexts.Switched, error)

	// Ingest uploads the ledger file as multipart form, in the field "file".
	//
	// The content is streamed, so it is read only once.
	Ingest(ctx context.Context, src schema.Source) (apianalysis.Ingested, error)

	// Analyze runs detection over the last ingested ledger.
	Analyze(ctx context.Context) (apianalysis.Result, error)

	// Transactions returns raw ledger rows, up to limit.
	Transactions(ctx context.Context, limit int) ([]apiledger.Transaction, error)

	// Anchor commits the hash triplet to the ledger.
	//
	// "already anchored" is a success response with StatusAlreadyAnchored.
	Anchor(ctx context.Context, req apiproof.AnchorRequest) (apiproof.AnchorResponse, error)

	// Verify looks up the ledger record of the result hash.
	Verify(ctx context.Context, resultHash string) (apiproof.Verification, error)

	// Archive fetches the archived analysis result by its content id.
	//
	// When it is not found, the error wraps ErrArchiveNotFound.
	Archive(ctx context.Context, cid string) (apiproof.Archive, error)

	// LedgerStatus reports the connectivity of the service to the ledger.
	LedgerStatus(ctx context.Context) (apiproof.LedgerStatus, error)
}

var (
	_ pipeline.Service = PoecClient(nil)
	_ proof.Ledger     = PoecClient(nil)
	_ liveness.Prober  = PoecClient(nil)
)

type client struct {
	httpclient *http.Client
	api        string
}

// create new client for Profile
//
// # Args
//
// - *prof.Profile
//
// # Return
//
// - PoecClient: created client
//
// - error: If given profile is invalid, ErrProfileInvalid is returned.
func NewClient(p *prof.Profile) (PoecClient, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	httpclient, err := HTTPClient(p)
	if err != nil {
		return nil, err
	}

	c := &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(p.ApiRoot, "/"),
	}

	return c, nil
}

// HTTPClient returns *http.Client trusting CA of the profile.
func HTTPClient(p *prof.Profile) (*http.Client, error) {
	httpclient := new(http.Client)
	if p.Cert.CA == "" {
		return httpclient, nil
	}
	return trustCa(httpclient, []string{p.Cert.CA})
}

func (c *client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", buildtime.UserAgent())
	return c.httpclient.Do(req)
}

// build URL with path
func (c *client) apipath(path ...string) string {
	trimmed := make([]string, 0, len(path)+1)
	trimmed = append(trimmed, c.api)
	for _, p := range path {
		trimmed = append(trimmed, strings.TrimPrefix(strings.TrimSuffix(p, "/"), "/"))
	}
	return strings.Join(trimmed, "/")
}

func trustCa(hc *http.Client, cacerts []string) (*http.Client, error) {
	if len(cacerts) <= 0 {
		return hc, nil
	}

	if hc.Transport == nil {
		hc.Transport = http.DefaultTransport
	}

	tran, ok := hc.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("failed to add ca cert")
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig.Clone()
	if tcc == nil {
		tcc = &tls.Config{}
	}

	rootcas := tcc.RootCAs
	if rootcas == nil {
		rootcas = x509.NewCertPool()
		tcc.RootCAs = rootcas
	}
	for _, ca := range cacerts {
		bin, err := base64.StdEncoding.DecodeString(ca)
		if err != nil {
			return nil, err
		}

		if !rootcas.AppendCertsFromPEM(bin) {
			return nil, fmt.Errorf("failed to add cert")
		}
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}
