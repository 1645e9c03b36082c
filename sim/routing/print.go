package routing

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func gatewayString(r RouteDescriptor) string {
	if r.NextHop().IsValid() {
		return r.NextHop().String()
	}
	return "-"
}

// PrintRoutingTable writes the rule table followed by the fallback's table.
func (r *PolicyRouter) PrintRoutingTable(w io.Writer) {
	summary := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		summary = append(summary, fmt.Sprintf("%s -> %s", describeMarkings(rule), gatewayString(rule.Route)))
	}
	fmt.Fprintf(w, "PolicyRouting %s: Policy-Based Routing Active (%s)\n", r.name, strings.Join(summary, ", "))

	table := newTable(w, []string{"#", "RULE", "MARKINGS", "DESTINATION", "NEXT HOP", "IF", "HITS"})
	for i, rule := range r.rules {
		dst := "<packet dst>"
		if rule.Route.Destination().IsValid() {
			dst = rule.Route.Destination().String()
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			rule.Name,
			describeMarkings(rule),
			dst,
			gatewayString(rule.Route),
			strconv.Itoa(rule.Route.Interface()),
			strconv.FormatUint(r.stats.RuleHits[rule.Name], 10),
		})
	}
	table.Render()

	switch fb := r.fallback.(type) {
	case nil:
		fmt.Fprintln(w, "fallback: none")
	case TablePrinter:
		fmt.Fprintln(w, "fallback:")
		fb.PrintRoutingTable(w)
	default:
		fmt.Fprintf(w, "fallback: %T\n", fb)
	}
}

// PrintRoutingTable writes the static table, most specific prefix first.
func (s *StaticRouting) PrintRoutingTable(w io.Writer) {
	table := newTable(w, []string{"DESTINATION", "GATEWAY", "IF", "METRIC", "FLAGS"})
	for _, r := range s.Routes() {
		flags := "UG"
		if r.Connected {
			flags = "U"
		}
		table.Append([]string{
			r.Route.Destination().String(),
			gatewayString(r.Route),
			strconv.Itoa(r.Route.Interface()),
			strconv.Itoa(r.Metric),
			flags,
		})
	}
	table.Render()
}

func describeMarkings(rule PolicyRule) string {
	if rule.Match != nil {
		return "<predicate>"
	}
	names := make([]string, len(rule.Markings))
	for i, m := range rule.Markings {
		names[i] = m.String()
	}
	return strings.Join(names, ",")
}
