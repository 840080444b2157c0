// Package client is an HTTP client of the forge node API
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dghubble/sling"
	"github.com/hermeznetwork/forge-node/apitypes"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/tracerr"
)

type apiMethod string

const (
	// GET is an HTTP GET
	GET apiMethod = "GET"
	// POST is an HTTP POST with JSON body
	POST apiMethod = "POST"
)

// Client of the forge node API
type Client struct {
	URL    string
	client *sling.Sling
}

// NewClient creates a Client of the node served at URL
func NewClient(URL string) *Client {
	if URL[len(URL)-1] != '/' {
		URL += "/"
	}
	return &Client{URL: URL, client: sling.New().Base(URL)}
}

func (c *Client) apiRequest(ctx context.Context, method apiMethod, path string,
	body interface{}, ret interface{}) error {
	path = "v1/" + strings.TrimPrefix(path, "/")
	var errSrv apitypes.ErrorResponse
	var req *http.Request
	var err error
	switch method {
	case GET:
		req, err = c.client.New().Get(path).Request()
	case POST:
		req, err = c.client.New().Post(path).BodyJSON(body).Request()
	default:
		return tracerr.Wrap(fmt.Errorf("invalid http method: %v", method))
	}
	if err != nil {
		return tracerr.Wrap(err)
	}
	res, err := c.client.Do(req.WithContext(ctx), ret, &errSrv)
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer res.Body.Close() //nolint:errcheck
	if !(200 <= res.StatusCode && res.StatusCode < 300) {
		return tracerr.Wrap(errSrv)
	}
	return nil
}

// SubmitOperation posts op. A rejected operation returns an
// apitypes.ErrorResponse with the engine code.
func (c *Client) SubmitOperation(ctx context.Context, op *common.Operation) (*apitypes.OperationResult, error) {
	var res apitypes.OperationResult
	if err := c.apiRequest(ctx, POST, "/operations", op, &res); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &res, nil
}

// Markets returns the identities of every market
func (c *Client) Markets(ctx context.Context) ([]common.Identity, error) {
	var res apitypes.Markets
	if err := c.apiRequest(ctx, GET, "/markets", nil, &res); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return res.Markets, nil
}

// Market returns the state of market id
func (c *Client) Market(ctx context.Context, id common.Identity) (*common.ConversionState, error) {
	var res common.ConversionState
	if err := c.apiRequest(ctx, GET, "/markets/"+id.String(), nil, &res); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &res, nil
}

// Governance returns the governance id
func (c *Client) Governance(ctx context.Context, id common.Identity) (*common.GovernanceState, error) {
	var res common.GovernanceState
	if err := c.apiRequest(ctx, GET, "/governances/"+id.String(), nil, &res); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &res, nil
}

// Proposals returns the proposals of the governance id
func (c *Client) Proposals(ctx context.Context, id common.Identity) ([]apitypes.ProposalAPI, error) {
	var res apitypes.Proposals
	if err := c.apiRequest(ctx, GET, "/governances/"+id.String()+"/proposals", nil, &res); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return res.Proposals, nil
}

// Proposal returns the proposal id
func (c *Client) Proposal(ctx context.Context, id common.Identity) (*apitypes.ProposalAPI, error) {
	var res apitypes.ProposalAPI
	if err := c.apiRequest(ctx, GET, "/proposals/"+id.String(), nil, &res); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &res, nil
}

// Operation returns the last execution of the operation with hash
func (c *Client) Operation(ctx context.Context, hash string) (*historydb.OperationAPI, error) {
	var res historydb.OperationAPI
	if err := c.apiRequest(ctx, GET, "/operations/"+hash, nil, &res); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &res, nil
}
