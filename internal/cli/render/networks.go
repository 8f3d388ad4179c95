package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// NetworksRenderer renders the configured networks
type NetworksRenderer struct {
	out  io.Writer
	json bool
}

// NewNetworksRenderer creates a new networks renderer
func NewNetworksRenderer(out io.Writer, json bool) *NetworksRenderer {
	return &NetworksRenderer{out: out, json: json}
}

type networkOutput struct {
	Name    string `json:"name"`
	RPCURL  string `json:"rpcUrl,omitempty"`
	ChainID uint64 `json:"chainId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RenderNetworksList renders one row per network
func (r *NetworksRenderer) RenderNetworksList(result *usecase.ListNetworksResult) error {
	if r.json {
		out := make([]networkOutput, 0, len(result.Networks))
		for _, n := range result.Networks {
			entry := networkOutput{Name: n.Name, RPCURL: n.RPCURL, ChainID: n.ChainID}
			if n.Error != nil {
				entry.Error = n.Error.Error()
			}
			out = append(out, entry)
		}
		return writeJSON(r.out, out)
	}

	if len(result.Networks) == 0 {
		fmt.Fprintln(r.out, "No networks configured")
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Network", "Chain ID", "RPC URL"})
	for _, n := range result.Networks {
		chainID := "-"
		if n.ChainID != 0 {
			chainID = fmt.Sprintf("%d", n.ChainID)
		}
		rpc := n.RPCURL
		if n.Error != nil {
			rpc = color.New(color.FgRed).Sprint(n.Error.Error())
		}
		t.AppendRow(table.Row{n.Name, chainID, rpc})
	}
	fmt.Fprintln(r.out, t.Render())
	return nil
}
