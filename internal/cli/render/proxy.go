package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

var (
	headlineStyle = color.New(color.FgGreen, color.Bold)
	detailStyle   = color.New(color.Faint)
	okStyle       = color.New(color.FgGreen)
	badStyle      = color.New(color.FgRed)
)

// ProxyRenderer prints the outcome of deploy, upgrade and status.
// The headline carrying the proxy address is written exactly once per result.
type ProxyRenderer struct {
	out  io.Writer
	json bool
}

// NewProxyRenderer creates a new proxy renderer
func NewProxyRenderer(out io.Writer, json bool) *ProxyRenderer {
	return &ProxyRenderer{out: out, json: json}
}

type deployOutput struct {
	Action               string `json:"action"`
	ID                   string `json:"id"`
	Address              string `json:"address"`
	Kind                 string `json:"kind"`
	Implementation       string `json:"implementation"`
	Admin                string `json:"admin,omitempty"`
	ReusedImplementation bool   `json:"reusedImplementation"`
	TransactionHash      string `json:"transactionHash"`
}

// RenderDeploy prints "Deployed <proxy address>" followed by details
func (r *ProxyRenderer) RenderDeploy(result *usecase.DeployProxyResult) error {
	proxy := result.Proxy
	out := deployOutput{
		Action:               "deploy",
		ID:                   proxy.ID,
		Address:              proxy.Address,
		Kind:                 string(proxy.ProxyInfo.Kind),
		Implementation:       proxy.ProxyInfo.Implementation,
		Admin:                proxy.ProxyInfo.Admin,
		ReusedImplementation: result.ReusedImplementation,
		TransactionHash:      proxy.TransactionHash,
	}
	if r.json {
		return writeJSON(r.out, out)
	}

	fmt.Fprintf(r.out, "%s %s\n", headlineStyle.Sprint("Deployed"), proxy.Address)
	detailStyle.Fprintf(r.out, "  id:             %s\n", proxy.ID)
	detailStyle.Fprintf(r.out, "  kind:           %s\n", out.Kind)
	impl := out.Implementation
	if result.ReusedImplementation {
		impl += " (reused)"
	}
	detailStyle.Fprintf(r.out, "  implementation: %s\n", impl)
	if out.Admin != "" {
		admin := out.Admin
		if result.ReusedAdmin {
			admin += " (reused)"
		}
		detailStyle.Fprintf(r.out, "  admin:          %s\n", admin)
	}
	detailStyle.Fprintf(r.out, "  tx:             %s\n", proxy.TransactionHash)
	return nil
}

type upgradeOutput struct {
	Action                 string `json:"action"`
	ID                     string `json:"id"`
	Address                string `json:"address"`
	Implementation         string `json:"implementation"`
	ImplementationContract string `json:"implementationContract"`
	PreviousImplementation string `json:"previousImplementation"`
	ReusedImplementation   bool   `json:"reusedImplementation"`
	TransactionHash        string `json:"transactionHash"`
}

// RenderUpgrade prints "Upgraded <proxy address>" followed by details
func (r *ProxyRenderer) RenderUpgrade(result *usecase.UpgradeProxyResult) error {
	proxy := result.Proxy
	out := upgradeOutput{
		Action:                 "upgrade",
		ID:                     proxy.ID,
		Address:                proxy.Address,
		Implementation:         proxy.ProxyInfo.Implementation,
		ImplementationContract: proxy.ProxyInfo.ImplementationContract,
		PreviousImplementation: result.PreviousImplementation,
		ReusedImplementation:   result.ReusedImplementation,
		TransactionHash:        result.TransactionHash,
	}
	if r.json {
		return writeJSON(r.out, out)
	}

	fmt.Fprintf(r.out, "%s %s\n", headlineStyle.Sprint("Upgraded"), proxy.Address)
	detailStyle.Fprintf(r.out, "  id:             %s\n", proxy.ID)
	detailStyle.Fprintf(r.out, "  implementation: %s -> %s (%s)\n",
		out.PreviousImplementation, out.Implementation, out.ImplementationContract)
	detailStyle.Fprintf(r.out, "  tx:             %s\n", out.TransactionHash)
	return nil
}

type statusOutput struct {
	ID                     string `json:"id"`
	Address                string `json:"address"`
	HasCode                bool   `json:"hasCode"`
	Implementation         string `json:"implementation"`
	RecordedImplementation string `json:"recordedImplementation"`
	ImplementationHasCode  bool   `json:"implementationHasCode"`
	Admin                  string `json:"admin,omitempty"`
	RecordedAdmin          string `json:"recordedAdmin,omitempty"`
	InSync                 bool   `json:"inSync"`
}

// RenderStatus compares on-chain proxy state with the registry
func (r *ProxyRenderer) RenderStatus(result *usecase.ProxyStatusResult) error {
	proxy := result.Proxy
	if r.json {
		return writeJSON(r.out, statusOutput{
			ID:                     proxy.ID,
			Address:                proxy.Address,
			HasCode:                result.HasCode,
			Implementation:         result.Implementation,
			RecordedImplementation: proxy.ProxyInfo.Implementation,
			ImplementationHasCode:  result.ImplementationHasCode,
			Admin:                  result.Admin,
			RecordedAdmin:          proxy.ProxyInfo.Admin,
			InSync:                 result.InSync(),
		})
	}

	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Proxy: %s\n", proxy.ID)
	fmt.Fprintf(r.out, "Address: %s\n\n", proxy.Address)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Check", "On chain", "Registry", ""})
	t.AppendRow(table.Row{"Code", yesNo(result.HasCode), "", mark(result.HasCode)})
	if result.HasCode {
		implOK := result.ImplementationMatches && result.ImplementationHasCode
		t.AppendRow(table.Row{"Implementation", result.Implementation, proxy.ProxyInfo.Implementation, mark(implOK)})
		t.AppendRow(table.Row{"Admin", orDash(result.Admin), orDash(proxy.ProxyInfo.Admin), mark(result.AdminMatches)})
	}
	fmt.Fprintln(r.out, t.Render())

	if result.InSync() {
		fmt.Fprintln(r.out, FormatSuccess("Proxy matches the registry"))
	} else {
		fmt.Fprintln(r.out, FormatWarning("Proxy state differs from the registry"))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func mark(ok bool) string {
	if ok {
		return okStyle.Sprint("✓")
	}
	return badStyle.Sprint("✗")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
