package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/chazu/stackvm/wire"
)

// Client calls a remote MachineServer.
type Client struct {
	run          *connect.Client[wire.RunRequest, wire.RunResponse]
	assemble     *connect.Client[wire.AssembleRequest, wire.AssembleResponse]
	instructions *connect.Client[wire.InstructionsRequest, wire.InstructionsResponse]
	history      *connect.Client[wire.HistoryRequest, wire.HistoryResponse]
}

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:4567".
func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	codec := connect.WithCodec(wire.Codec{})
	return &Client{
		run:          connect.NewClient[wire.RunRequest, wire.RunResponse](httpClient, baseURL+RunProcedure, codec),
		assemble:     connect.NewClient[wire.AssembleRequest, wire.AssembleResponse](httpClient, baseURL+AssembleProcedure, codec),
		instructions: connect.NewClient[wire.InstructionsRequest, wire.InstructionsResponse](httpClient, baseURL+InstructionsProcedure, codec),
		history:      connect.NewClient[wire.HistoryRequest, wire.HistoryResponse](httpClient, baseURL+HistoryProcedure, codec),
	}
}

// Run runs a program remotely.
func (c *Client) Run(ctx context.Context, req *wire.RunRequest) (*wire.RunResponse, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Assemble checks a program remotely.
func (c *Client) Assemble(ctx context.Context, program string) (*wire.AssembleResponse, error) {
	resp, err := c.assemble.CallUnary(ctx, connect.NewRequest(&wire.AssembleRequest{Program: program}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Instructions lists the remote instruction set.
func (c *Client) Instructions(ctx context.Context) ([]wire.InstructionInfo, error) {
	resp, err := c.instructions.CallUnary(ctx, connect.NewRequest(&wire.InstructionsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Instructions, nil
}

// History lists up to limit recent runs.
func (c *Client) History(ctx context.Context, limit int) ([]wire.RunSummary, error) {
	resp, err := c.history.CallUnary(ctx, connect.NewRequest(&wire.HistoryRequest{Limit: limit}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Runs, nil
}
