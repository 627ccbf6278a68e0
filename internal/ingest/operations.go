package ingest

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/models"
)

// The elite contingency operation grants a fixed one-time module reward set
// on top of whatever its page lists. The bonus is account-level and never
// written into the page content.
var contingencyModuleRewards = models.RewardMap{
	"mod_unlock_token":   4,
	"mod_update_token_1": 20,
	"mod_update_token_2": 8,
}

// Cadence constants for the recurring operation families.
const (
	annihilationRotation = 8 * 7 * 24 * time.Hour  // rotations advance in fixed 8-week steps
	contingencyCadence   = 14 * 7 * 24 * time.Hour // estimated spacing between seasons
)

// campaignHistorySlack widens the relevant window for long-running campaign
// sub-pages: a theme launched up to a year before the cutoff still produces
// monthly sub-units inside the window.
const campaignHistorySlack = 12

var templateArgRe = regexp.MustCompile(`(?m)^\|\s*([^=|]+?)\s*=\s*(.*?)\s*$`)

// parseTemplateArgs reads |key=value lines out of a raw wikitext template
// block.
func parseTemplateArgs(wikitext string) map[string]string {
	args := map[string]string{}
	for _, m := range templateArgRe.FindAllStringSubmatch(wikitext, -1) {
		args[m[1]] = m[2]
	}
	return args
}

// fetchContingency resolves the current elite operation season from its
// template block, extracts its reward page when the season starts inside the
// window, and probes one earlier season by numeric offset.
func (f *Fetcher) fetchContingency(ctx context.Context, ticket models.SchedulerTicket, cutoff, today time.Time, events models.WebEventsData) error {
	raw, err := f.sched.Fetch(ctx, f.rawURL(contingencyPage), ticket)
	if err != nil {
		return fmt.Errorf("ingest: fetching %s template: %w", contingencyPage, err)
	}
	args := parseTemplateArgs(string(raw))

	start, ok := parseWikiTime(args["开始时间"])
	if !ok {
		return fmt.Errorf("ingest: %s template has no parseable start time", contingencyPage)
	}
	season, err := strconv.Atoi(args["期数"])
	if err != nil {
		return fmt.Errorf("ingest: %s template has no season number: %w", contingencyPage, err)
	}

	if within(start, cutoff, today) {
		f.addContingencySeason(ctx, ticket, events, season, start)
	}

	// One earlier season, placed by cadence estimate.
	if prevStart := start.Add(-contingencyCadence); season > 1 && within(prevStart, cutoff, today) {
		f.addContingencySeason(ctx, ticket, events, season-1, prevStart)
	}
	return nil
}

func (f *Fetcher) addContingencySeason(ctx context.Context, ticket models.SchedulerTicket, events models.WebEventsData, season int, start time.Time) {
	key := fmt.Sprintf("%s#%d", contingencyPage, season)
	ev := &models.WebEvent{
		PageKey:             key,
		Link:                f.pageURL(key),
		SourceDate:          timePtr(start),
		Rewards:             models.RewardMap{},
		DisableFurtherFetch: true,
	}
	ev.Rewards.Merge(contingencyModuleRewards)

	// Reward-page extraction failures keep the season with just its fixed
	// module set.
	if body, err := f.sched.Fetch(ctx, ev.Link, ticket); err != nil {
		log.Printf("[ingest] fetching %q reward page: %v", key, err)
	} else if ex, err := ExtractPage(string(body), f.cat); err != nil {
		log.Printf("[ingest] extracting %q reward page: %v", key, err)
	} else {
		applyExtraction(ev, ex)
	}
	events[key] = ev
}

// fetchAnnihilation derives past rotations of the rotating operation by
// walking backward from the current rotation's end in fixed 8-week steps.
// Rotations have no individually fetchable page; each occurrence is
// synthesized complete.
func (f *Fetcher) fetchAnnihilation(ctx context.Context, ticket models.SchedulerTicket, cutoff, today time.Time, events models.WebEventsData) error {
	raw, err := f.sched.Fetch(ctx, f.rawURL(annihilationPage), ticket)
	if err != nil {
		return fmt.Errorf("ingest: fetching %s template: %w", annihilationPage, err)
	}
	args := parseTemplateArgs(string(raw))

	end, ok := parseWikiTime(args["结束时间"])
	if !ok {
		return fmt.Errorf("ingest: %s template has no parseable end time", annihilationPage)
	}
	current, err := strconv.Atoi(args["期数"])
	if err != nil {
		return fmt.Errorf("ingest: %s template has no rotation number: %w", annihilationPage, err)
	}

	for k := 0; current-k >= 1; k++ {
		start := end.Add(-time.Duration(k+1) * annihilationRotation)
		if start.Before(cutoff) {
			break
		}
		if !within(start, cutoff, today) {
			continue
		}
		key := fmt.Sprintf("%s·第%d期", annihilationPage, current-k)
		events[key] = &models.WebEvent{
			PageKey:             key,
			Link:                f.pageURL(annihilationPage),
			SourceDate:          timePtr(start),
			DisableFurtherFetch: true,
		}
	}
	return nil
}

// fetchCampaign merges the long-running campaign feature: its hub page lists
// per-theme sub-pages with launch dates; each sub-page carries either
// monthly tabs or one dedicated reward body. One sub-unit becomes one event,
// replacing any same-keyed entry from the main listing.
func (f *Fetcher) fetchCampaign(ctx context.Context, ticket models.SchedulerTicket, cutoff, today time.Time, events models.WebEventsData) error {
	body, err := f.sched.Fetch(ctx, f.pageURL(campaignPage), ticket)
	if err != nil {
		return fmt.Errorf("ingest: fetching %s hub: %w", campaignPage, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("ingest: parsing %s hub: %w", campaignPage, err)
	}

	themeCutoff := cutoff.AddDate(0, -campaignHistorySlack, 0)

	type theme struct {
		name    string
		href    string
		started time.Time
	}
	var themes []theme
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		link := cells.Eq(0).Find("a").First()
		if link.Length() == 0 {
			return
		}
		started, ok := parseWikiTime(cleanText(cells.Eq(1).Text()))
		if !ok || started.Before(themeCutoff) || started.After(today) {
			return
		}
		href, _ := link.Attr("href")
		themes = append(themes, theme{name: cleanText(link.Text()), href: f.absoluteURL(href), started: started})
	})

	for _, th := range themes {
		if err := f.fetchCampaignTheme(ctx, ticket, cutoff, today, events, th.name, th.href, th.started); err != nil {
			log.Printf("[ingest] campaign theme %q: %v", th.name, err)
		}
	}
	return nil
}

var monthTabRe = regexp.MustCompile(`^(\d{4})年(\d{1,2})月$`)

func (f *Fetcher) fetchCampaignTheme(ctx context.Context, ticket models.SchedulerTicket, cutoff, today time.Time, events models.WebEventsData, name, href string, started time.Time) error {
	body, err := f.sched.Fetch(ctx, href, ticket)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return err
	}

	// The full theme content is captured here; individual re-fetches of the
	// same page would only repeat it.
	tabs := doc.Find("div.tabbertab[title]")
	if tabs.Length() == 0 {
		if !within(started, cutoff, today) {
			return nil
		}
		ex := extractFromSelection(doc.Selection, f.cat)
		ev := &models.WebEvent{
			PageKey:             name,
			Link:                href,
			SourceDate:          timePtr(started),
			DisableFurtherFetch: true,
		}
		applyExtraction(ev, ex)
		events[name] = ev
		return nil
	}

	tabs.Each(func(_ int, tab *goquery.Selection) {
		title, _ := tab.Attr("title")
		m := monthTabRe.FindStringSubmatch(cleanText(title))
		if m == nil {
			return
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		tabStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, wikiZone)
		if !within(tabStart, cutoff, today) {
			return
		}
		key := name + "/" + cleanText(title)
		ex := extractFromSelection(tab, f.cat)
		ev := &models.WebEvent{
			PageKey:             key,
			Link:                href,
			SourceDate:          timePtr(tabStart),
			DisableFurtherFetch: true,
		}
		applyExtraction(ev, ex)
		events[key] = ev
	})
	return nil
}
