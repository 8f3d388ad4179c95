package render

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// Color styles for table format
var (
	nsBg               = color.BgYellow
	chainBg            = color.BgCyan
	nsHeader           = color.New(nsBg, color.FgBlack)
	nsHeaderBold       = color.New(nsBg, color.FgBlack, color.Bold)
	chainHeader        = color.New(chainBg, color.FgBlack)
	chainHeaderBold    = color.New(chainBg, color.FgBlack, color.Bold)
	addressStyle       = color.New(color.FgWhite)
	timestampStyle     = color.New(color.Faint)
	sectionHeaderStyle = color.New(color.Bold, color.FgHiWhite)
	implPrefixStyle    = color.New(color.Faint)
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

type TableData [][]string

// sections in display order
var sectionOrder = []models.DeploymentType{
	models.ProxyDeployment,
	models.ImplementationDeployment,
	models.ProxyAdminDeployment,
}

var sectionTitles = map[models.DeploymentType]string{
	models.ProxyDeployment:          "PROXIES",
	models.ImplementationDeployment: "IMPLEMENTATIONS",
	models.ProxyAdminDeployment:     "PROXY ADMINS",
}

// DeploymentsRenderer renders deployment lists as formatted tables with tree-style layout
type DeploymentsRenderer struct {
	out  io.Writer
	json bool
}

// NewDeploymentsRenderer creates a new deployments renderer
func NewDeploymentsRenderer(out io.Writer, json bool) *DeploymentsRenderer {
	return &DeploymentsRenderer{
		out:  out,
		json: json,
	}
}

// RenderDeploymentList renders deployments grouped by namespace and chain
func (r *DeploymentsRenderer) RenderDeploymentList(result *usecase.DeploymentListResult) error {
	if r.json {
		deployments := result.Deployments
		if deployments == nil {
			deployments = []*models.Deployment{}
		}
		return writeJSON(r.out, deployments)
	}

	if len(result.Deployments) == 0 {
		fmt.Fprintln(r.out, "No deployments found")
		return nil
	}

	groups := lo.GroupBy(result.Deployments, func(d *models.Deployment) string { return d.Namespace })
	namespaces := lo.Keys(groups)
	sort.Strings(namespaces)

	// Build every table first so columns line up across groups
	type chainGroup struct {
		chainID  uint64
		sections map[models.DeploymentType]TableData
	}
	nsChains := make(map[string][]chainGroup)
	var allTables []TableData
	for _, ns := range namespaces {
		byChain := lo.GroupBy(groups[ns], func(d *models.Deployment) uint64 { return d.ChainID })
		chainIDs := lo.Keys(byChain)
		sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

		for _, chainID := range chainIDs {
			group := chainGroup{chainID: chainID, sections: map[models.DeploymentType]TableData{}}
			byType := lo.GroupBy(byChain[chainID], func(d *models.Deployment) models.DeploymentType { return d.Type })
			for _, typ := range sectionOrder {
				if deps := byType[typ]; len(deps) > 0 {
					data := r.buildDeploymentTable(deps)
					group.sections[typ] = data
					allTables = append(allTables, data)
				}
			}
			nsChains[ns] = append(nsChains[ns], group)
		}
	}

	widths := calculateTableColumnWidths(allTables)

	for _, ns := range namespaces {
		nsLabel := fmt.Sprintf("%-12s", "namespace:")
		nsValue := fmt.Sprintf("%-30s", strings.ToUpper(ns))
		fmt.Fprintln(r.out, nsHeader.Sprintf("   ◎ %s %s", nsLabel, nsHeaderBold.Sprint(nsValue)))

		chains := nsChains[ns]
		for i, group := range chains {
			treePrefix, continuationPrefix := "├─", "│ "
			if i == len(chains)-1 {
				treePrefix, continuationPrefix = "└─", "  "
			}

			chainLabel := fmt.Sprintf("%-12s", "chain:")
			chainValue := fmt.Sprintf("%-30d", group.chainID)
			fmt.Fprintf(r.out, "%s%s%s\n", treePrefix, chainHeader.Sprintf(" ⛓ %s ", chainLabel), chainHeaderBold.Sprint(chainValue))
			fmt.Fprintln(r.out, continuationPrefix)

			for _, typ := range sectionOrder {
				data, ok := group.sections[typ]
				if !ok {
					continue
				}
				fmt.Fprintf(r.out, "%s%s\n", continuationPrefix, sectionHeaderStyle.Sprint(sectionTitles[typ]))
				fmt.Fprintln(r.out, renderTableWithWidths(data, widths, continuationPrefix))
				fmt.Fprintln(r.out, continuationPrefix)
			}
		}
		fmt.Fprintln(r.out)
	}

	return nil
}

// buildDeploymentTable creates one row per deployment, proxies followed by their implementation line
func (r *DeploymentsRenderer) buildDeploymentTable(deployments []*models.Deployment) TableData {
	var data TableData
	for _, dep := range deployments {
		data = append(data, []string{
			r.getColoredDisplayName(dep),
			addressStyle.Sprint(dep.Address),
			shortHash(dep.TransactionHash),
			timestampStyle.Sprint(dep.CreatedAt.Format("2006-01-02 15:04:05")),
		})

		if dep.IsProxy() {
			implName := dep.ProxyInfo.ImplementationContract
			if implName == "" {
				implName = dep.ProxyInfo.Implementation
			}
			upgrades := ""
			if n := len(dep.ProxyInfo.History); n > 0 {
				upgrades = fmt.Sprintf("%d upgrade(s)", n)
			}
			data = append(data, []string{
				implPrefixStyle.Sprintf("└─ %s (%s)", implName, dep.ProxyInfo.Kind),
				implPrefixStyle.Sprint(dep.ProxyInfo.Implementation),
				"",
				implPrefixStyle.Sprint(upgrades),
			})
		}
	}
	return data
}

// getColoredDisplayName returns a colored display name for deployment
func (r *DeploymentsRenderer) getColoredDisplayName(dep *models.Deployment) string {
	name := dep.GetShortID()

	switch dep.Type {
	case models.ProxyDeployment:
		return color.New(color.FgMagenta, color.Bold).Sprint(name)
	case models.ProxyAdminDeployment:
		return color.New(color.FgBlue, color.Bold).Sprint(name)
	default:
		return color.New(color.FgGreen, color.Bold).Sprint(name)
	}
}

// renderTableWithWidths renders a table with specific column widths
func renderTableWithWidths(tableData TableData, columnWidths []int, continuationPrefix string) string {
	if len(tableData) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box = table.BoxStyle{
		PaddingRight: "   ",
	}

	colConfigs := make([]table.ColumnConfig, len(columnWidths))
	for i, width := range columnWidths {
		if i == 0 {
			width += 2 + len([]rune(continuationPrefix))
		}
		colConfigs[i] = table.ColumnConfig{
			Number:   i + 1,
			Align:    text.AlignLeft,
			WidthMin: width,
			WidthMax: width,
		}
	}
	t.SetColumnConfigs(colConfigs)

	for _, row := range tableData {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			if i == 0 {
				tableRow[i] = continuationPrefix + cell
			} else {
				tableRow[i] = cell
			}
		}
		t.AppendRow(tableRow)
	}

	return t.Render()
}

// stripAnsiCodes removes ANSI escape sequences from a string
func stripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// calculateTableColumnWidths calculates column widths for multiple tables
func calculateTableColumnWidths(tables []TableData) []int {
	maxCols := 0
	for _, t := range tables {
		for _, row := range t {
			maxCols = max(maxCols, len(row))
		}
	}

	widths := make([]int, maxCols)
	for _, t := range tables {
		for _, row := range t {
			for colIdx, cell := range row {
				widths[colIdx] = max(widths[colIdx], len([]rune(stripAnsiCodes(cell))))
			}
		}
	}
	return widths
}
