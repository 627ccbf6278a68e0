package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
	"github.com/voiddp/ak-events-tracker/internal/models"
)

const (
	listingPage      = "活动一览"
	contingencyPage  = "危机合约"
	annihilationPage = "剿灭作战"
	campaignPage     = "集成战略"

	// A batch run widens the lookback so boundary skew never drops an
	// event that is still live.
	batchCutoffSlack = 7 * 24 * time.Hour

	maxFarmIDs = 3
)

// Wiki timestamps are server-local (UTC+8).
var wikiZone = time.FixedZone("UTC+8", 8*60*60)

var wikiTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02",
}

// PageFetcher is the scheduler surface the event list fetcher needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, ticket models.SchedulerTicket) ([]byte, error)
}

// Fetcher builds one run's full event dataset: the chronological listing
// plus the recurring operation families, each page fetched exactly once
// through the scheduler.
type Fetcher struct {
	sched   PageFetcher
	cat     *catalog.Catalog
	baseURL string
	now     func() time.Time
}

func NewFetcher(sched PageFetcher, cat *catalog.Catalog, baseURL string) *Fetcher {
	return &Fetcher{
		sched:   sched,
		cat:     cat,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (f *Fetcher) pageURL(name string) string {
	return f.baseURL + "/w/" + url.PathEscape(name)
}

func (f *Fetcher) rawURL(name string) string {
	return f.baseURL + "/index.php?title=" + url.QueryEscape(name) + "&action=raw"
}

// GetEventList returns every event in the lookback window, keyed by page
// key. Listing and operation-template fetch failures abort the run;
// per-event extraction failures inside the bulk pass are logged and the
// event kept without rewards.
func (f *Fetcher) GetEventList(ctx context.Context, monthsAgo int, ticket models.SchedulerTicket) (models.WebEventsData, error) {
	today := f.now()
	cutoff := today.AddDate(0, -monthsAgo, 0)
	if ticket.IsBatchJob {
		cutoff = cutoff.Add(-batchCutoffSlack)
	}

	events, err := f.fetchListing(ctx, ticket, cutoff, today)
	if err != nil {
		return nil, err
	}
	if err := f.fetchContingency(ctx, ticket, cutoff, today, events); err != nil {
		return nil, err
	}
	if err := f.fetchAnnihilation(ctx, ticket, cutoff, today, events); err != nil {
		return nil, err
	}
	if err := f.fetchCampaign(ctx, ticket, cutoff, today, events); err != nil {
		return nil, err
	}

	f.enrichAll(ctx, ticket, events)
	return events, nil
}

// fetchListing parses the main chronological listing: rows whose first cell
// is a date-time and whose second cell links the event page.
func (f *Fetcher) fetchListing(ctx context.Context, ticket models.SchedulerTicket, cutoff, today time.Time) (models.WebEventsData, error) {
	body, err := f.sched.Fetch(ctx, f.pageURL(listingPage), ticket)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetching event listing: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing event listing: %w", err)
	}

	events := models.WebEventsData{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		started, ok := parseWikiTime(cleanText(cells.Eq(0).Text()))
		if !ok || !within(started, cutoff, today) {
			return
		}
		link := cells.Eq(1).Find("a").First()
		if link.Length() == 0 {
			return
		}
		key := cleanText(link.Text())
		if key == "" {
			return
		}
		href, _ := link.Attr("href")
		ev := &models.WebEvent{
			PageKey:    key,
			Link:       f.absoluteURL(href),
			SourceDate: timePtr(started),
		}
		events[key] = ev
	})
	return events, nil
}

// enrichAll fetches and extracts every event page not already captured by a
// bulk parse. One bad page never aborts the run.
func (f *Fetcher) enrichAll(ctx context.Context, ticket models.SchedulerTicket, events models.WebEventsData) {
	keys := make([]string, 0, len(events))
	for k := range events {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ev := events[key]
		if ev.DisableFurtherFetch || ev.Rewards != nil {
			continue
		}
		if err := f.enrich(ctx, ticket, ev); err != nil {
			log.Printf("[ingest] extraction failed for %q: %v", key, err)
		}
	}
}

func (f *Fetcher) enrich(ctx context.Context, ticket models.SchedulerTicket, ev *models.WebEvent) error {
	body, err := f.sched.Fetch(ctx, ev.Link, ticket)
	if err != nil {
		return err
	}
	ex, err := ExtractPage(string(body), f.cat)
	if err != nil {
		return err
	}
	applyExtraction(ev, ex)
	return nil
}

func applyExtraction(ev *models.WebEvent, ex *Extraction) {
	if ev.Rewards == nil {
		ev.Rewards = models.RewardMap{}
	}
	ev.Rewards.Merge(ex.Rewards)
	farms := ex.FarmIDs
	if len(farms) > maxFarmIDs {
		farms = farms[:maxFarmIDs]
	}
	if len(ev.FarmIDs) == 0 {
		ev.FarmIDs = farms
	}
	for _, id := range ex.InfiniteIDs {
		if !ev.HasInfinite(id) {
			ev.InfiniteIDs = append(ev.InfiniteIDs, id)
		}
	}
	if ev.DisplayName == "" && ex.Title != "" {
		ev.DisplayName = ex.Title
	}
}

func (f *Fetcher) absoluteURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return f.baseURL + href
}

func parseWikiTime(s string) (time.Time, bool) {
	for _, layout := range wikiTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, wikiZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func within(t, cutoff, today time.Time) bool {
	return !t.Before(cutoff) && !t.After(today)
}

func timePtr(t time.Time) *time.Time { return &t }
