package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
	"github.com/voiddp/ak-events-tracker/internal/ingest"
	"github.com/voiddp/ak-events-tracker/internal/models"
	"github.com/voiddp/ak-events-tracker/internal/reconcile"
	"github.com/voiddp/ak-events-tracker/internal/scheduler"
	"github.com/voiddp/ak-events-tracker/internal/store"
)

// dumpevents runs one full crawl and prints the reconciled dataset. It uses
// the in-memory store, so it never coordinates with a running server; handy
// for checking extraction and date mapping against the live wiki.
func main() {
	months := flag.Int("months", 6, "lookback window in months")
	base := flag.String("base", "https://prts.wiki", "wiki base URL")
	flag.Parse()

	ctx := context.Background()

	cat, err := catalog.Load()
	if err != nil {
		log.Fatal(err)
	}
	anchors, shiftMonths, err := reconcile.Load()
	if err != nil {
		log.Fatal(err)
	}

	sched := scheduler.New(store.NewMem(), nil, scheduler.Config{})
	fetcher := ingest.NewFetcher(sched, cat, *base)

	ticket := models.SchedulerTicket{SessionID: "dumpevents", IsBatchJob: true}
	events, err := fetcher.GetEventList(ctx, *months, ticket)
	if err != nil {
		log.Fatal(err)
	}
	reconciled := reconcile.Apply(events, anchors, shiftMonths)

	keys := make([]string, 0, len(reconciled))
	for k := range reconciled {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := reconciled[keys[i]], reconciled[keys[j]]
		if a.SourceDate == nil || b.SourceDate == nil {
			return a.SourceDate != nil
		}
		return a.SourceDate.Before(*b.SourceDate)
	})

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Page Key", "Title", "CN Start", "EN Estimate", "Rewards", "Farms"})

	for _, k := range keys {
		ev := reconciled[k]
		src, dst := "", ""
		if ev.SourceDate != nil {
			src = ev.SourceDate.Format("2006-01-02")
		}
		if ev.TargetDate != nil {
			dst = ev.TargetDate.Format("2006-01-02")
		}
		t.AppendRow(table.Row{ev.PageKey, ev.DisplayName, src, dst, rewardSummary(cat, ev), strings.Join(ev.FarmIDs, " ")})
	}
	t.Render()
}

func rewardSummary(cat *catalog.Catalog, ev *models.WebEvent) string {
	ids := make([]string, 0, len(ev.Rewards))
	for id := range ev.Rewards {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		name := id
		if item, ok := cat.ByID(id); ok {
			name = item.Name
		}
		suffix := ""
		if ev.HasInfinite(id) {
			suffix = "+"
		}
		parts = append(parts, fmt.Sprintf("%s x%d%s", name, ev.Rewards[id], suffix))
	}
	return strings.Join(parts, ", ")
}
