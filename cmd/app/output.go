package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/atvirokodosprendimai/cmdb/internal/topology"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatMaybe(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func printCIs(items []domain.ConfigurationItem) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Name,
			item.Type,
			item.Status,
			orDash(item.Environment),
			orDash(item.IPAddress),
			formatTime(item.UpdatedAt),
		})
	}
	printTable([]string{"ID", "NAME", "TYPE", "STATUS", "ENVIRONMENT", "IP", "UPDATED_AT"}, rows)
}

func printCI(item domain.ConfigurationItem) {
	metadata := "-"
	if len(item.Metadata) > 0 && string(item.Metadata) != "null" {
		metadata = string(item.Metadata)
	}
	printKV([][2]string{
		{"id", item.ID},
		{"name", item.Name},
		{"type", item.Type},
		{"status", item.Status},
		{"location", orDash(item.Location)},
		{"hostname", orDash(item.Hostname)},
		{"ip_address", orDash(item.IPAddress)},
		{"environment", orDash(item.Environment)},
		{"business_service", orDash(item.BusinessService)},
		{"owner", orDash(item.Owner)},
		{"operating_system", orDash(item.OperatingSystem)},
		{"metadata", metadata},
		{"created_at", formatTime(item.CreatedAt)},
		{"updated_at", formatTime(item.UpdatedAt)},
	})
}

func printRelationships(items []domain.CIRelationship) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.SourceID,
			item.RelationshipType,
			item.TargetID,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "SOURCE", "TYPE", "TARGET", "CREATED_AT"}, rows)
}

func printTickets(items []domain.Ticket) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Title,
			item.Status,
			item.Priority,
			formatMaybe(item.CIID),
			orDash(item.Assignee),
			formatTime(item.UpdatedAt),
		})
	}
	printTable([]string{"ID", "TITLE", "STATUS", "PRIORITY", "CI", "ASSIGNEE", "UPDATED_AT"}, rows)
}

func printTicket(item domain.Ticket) {
	printKV([][2]string{
		{"id", item.ID},
		{"title", item.Title},
		{"description", orDash(item.Description)},
		{"status", item.Status},
		{"priority", item.Priority},
		{"ci_id", formatMaybe(item.CIID)},
		{"assignee", orDash(item.Assignee)},
		{"created_at", formatTime(item.CreatedAt)},
		{"updated_at", formatTime(item.UpdatedAt)},
	})
}

func printSLAMetrics(items []domain.SLAMetric) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			orDash(item.ServiceName),
			item.MetricName,
			formatFloat(item.TargetValue),
			formatFloat(item.ActualValue),
			strconv.FormatBool(item.Breached),
			formatMaybe(item.CIID),
			formatTime(item.MeasuredAt),
		})
	}
	printTable([]string{"ID", "SERVICE", "METRIC", "TARGET", "ACTUAL", "BREACHED", "CI", "MEASURED_AT"}, rows)
}

func printDashboard(item domain.DashboardSummary) {
	printKV([][2]string{
		{"total_cis", strconv.Itoa(item.TotalCIs)},
		{"total_tickets", strconv.Itoa(item.TotalTickets)},
		{"open_tickets", strconv.Itoa(item.OpenTickets)},
		{"breached_slas", strconv.Itoa(item.BreachedSLAs)},
		{"tickets_by_status", formatCounts(item.TicketsByStatus)},
		{"tickets_by_priority", formatCounts(item.TicketsByPriority)},
	})
	if len(item.RecentTickets) > 0 {
		fmt.Println()
		fmt.Println("recent tickets")
		printTickets(item.RecentTickets)
	}
	if len(item.RecentCIs) > 0 {
		fmt.Println()
		fmt.Println("recent configuration items")
		printCIs(item.RecentCIs)
	}
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.Itoa(counts[k]))
	}
	return strings.Join(parts, ",")
}

func printTopology(layout topology.Layout) {
	rows := make([][]string, 0, len(layout.Nodes))
	for _, n := range layout.Nodes {
		rows = append(rows, []string{
			n.ID,
			n.CI.Name,
			n.CI.Type,
			n.CI.Status,
			strconv.Itoa(n.Level),
			formatFloat(n.X) + "," + formatFloat(n.Y),
		})
	}
	printTable([]string{"ID", "NAME", "TYPE", "STATUS", "LEVEL", "POSITION"}, rows)

	if len(layout.Links) == 0 {
		return
	}
	fmt.Println()
	links := make([][]string, 0, len(layout.Links))
	for _, l := range layout.Links {
		links = append(links, []string{l.Source, l.Type, l.Target})
	}
	printTable([]string{"SOURCE", "RELATION", "TARGET"}, links)
}

func printAuditLogs(items []domain.AuditLog) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Action,
			item.TargetType,
			orDash(item.TargetID),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "AT"}, rows)
}
