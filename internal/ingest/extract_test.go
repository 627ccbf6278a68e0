package ingest

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
	"github.com/voiddp/ak-events-tracker/internal/models"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Item{
		{ID: "4001", Name: "龙门币", Tier: 4},
		{ID: "4003", Name: "合成玉", Tier: 5},
		{ID: "30013", Name: "固源岩组", Tier: 3},
		{ID: "30033", Name: "聚酸酯组", Tier: 3},
		{ID: "30014", Name: "提纯源岩", Tier: 4},
		{ID: "30103", Name: "RMA70-12", Tier: 3},
		{ID: "3302", Name: "技巧概要·卷2", Tier: 3},
		{ID: "voucher_med_squad", Name: "治疗小队资质卡", Tier: 4},
	})
}

func selection(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return doc.Selection
}

func TestExtractListRewards(t *testing.T) {
	const page = `<ul>
		<li><span class="item-name">合成玉</span><span class="item-num">3万</span></li>
		<li><span class="item-name">固源岩组</span><span class="item-num">40</span></li>
		<li><span class="item-name">不存在的道具</span><span class="item-num">5</span></li>
		<li><span class="item-name">龙门币</span><span class="item-num">0</span></li>
		<li><span class="item-name">提纯源岩</span></li>
	</ul>`

	ex := &Extraction{Rewards: models.RewardMap{}}
	extractListRewards(selection(t, page), testCatalog(), ex)

	want := models.RewardMap{"4003": 30000, "30013": 40}
	assertRewards(t, ex.Rewards, want)
}

func TestExtractGridRewards(t *testing.T) {
	const page = `
	<table><tr>
		<td><a title="固源岩组" href="/w/固源岩组">固源岩组</a><span class="num">x40</span></td>
		<td><a title="合成玉" href="/w/合成玉">合成玉</a><span class="num">500</span></td>
	</tr></table>
	<table><tr><td>合计</td><td>奖励总数</td></tr>
		<tr><td><a title="聚酸酯组">聚酸酯组</a><span>999</span></td></tr>
	</table>
	<div class="reward-cell"><a title="提纯源岩">提纯源岩</a><span>6</span></div>`

	ex := &Extraction{Rewards: models.RewardMap{}}
	extractGridRewards(selection(t, page), testCatalog(), ex)

	// The totals table is skipped entirely.
	want := models.RewardMap{"30013": 40, "4003": 500, "30014": 6}
	assertRewards(t, ex.Rewards, want)
}

func TestExtractShopRewards(t *testing.T) {
	const page = `<table>
		<tr><td>治疗小队资质卡x3</td><td>150龙门币</td><td>5</td></tr>
		<tr><td>固源岩组</td><td>20</td></tr>
		<tr><td>合成玉</td><td>∞</td></tr>
		<tr><td>龙门币</td><td>无限</td></tr>
		<tr><td>随便什么</td><td>3</td></tr>
		<tr><td>提纯源岩</td></tr>
	</table>`

	ex := &Extraction{Rewards: models.RewardMap{}}
	extractShopRewards(selection(t, page), testCatalog(), ex)

	// 3 per pack, 5 purchasable: 15 total.
	want := models.RewardMap{"voucher_med_squad": 15, "30013": 20}
	assertRewards(t, ex.Rewards, want)

	if len(ex.InfiniteIDs) != 1 || ex.InfiniteIDs[0] != "4003" {
		t.Errorf("InfiniteIDs = %v, want [4003]; LMD must stay excluded", ex.InfiniteIDs)
	}
}

func TestExtractTextRewards(t *testing.T) {
	const page = `<p>活动期间登录即可领取合成玉×3000、固源岩组x10，另有专属礼包合成玉×6000出售。</p>
	<p>通关奖励：RMA70−12×5。</p>
	<span>技巧概要・卷2×20</span>`

	ex := &Extraction{Rewards: models.RewardMap{}}
	extractTextRewards(selection(t, page), testCatalog(), ex)

	// The 礼包 segment is discarded; stylistic glyph variants still match.
	want := models.RewardMap{"4003": 3000, "30013": 10, "30103": 5, "3302": 20}
	assertRewards(t, ex.Rewards, want)
}

func TestExtractTextRewardsFirstMatchConsumesSegment(t *testing.T) {
	// Both names appear in one segment; only the first match may count.
	const page = `<p>合成玉×100和固源岩组x5</p>`

	ex := &Extraction{Rewards: models.RewardMap{}}
	extractTextRewards(selection(t, page), testCatalog(), ex)

	if len(ex.Rewards) != 1 {
		t.Fatalf("one segment contributed %d items, want 1: %v", len(ex.Rewards), ex.Rewards)
	}
}

func TestDetectFarms(t *testing.T) {
	const page = `<table><tr>
		<td><span>固定掉落</span>
			<a title="固源岩组">固源岩组</a>
			<a title="提纯源岩">提纯源岩</a>
			<a title="聚酸酯组">聚酸酯组</a>
			<a title="固源岩组">固源岩组</a>
		</td>
		<td><span>首次掉落</span><a title="合成玉">合成玉</a></td>
	</tr></table>`

	got := detectFarms(selection(t, page), testCatalog())
	want := []string{"30013", "30033"}
	if len(got) != len(want) {
		t.Fatalf("detectFarms = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("farm[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDetectTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"latin title capitalized",
			`<div class="fnameheader">dorothy's vision</div>`,
			"Dorothy's Vision",
		},
		{
			"escaped markup",
			`&lt;div class="fnameheader"&gt;so long, adele&lt;/div&gt;`,
			"So Long, Adele",
		},
		{
			"ampersand kept literal",
			`<div class="fnameheader">guide ahead &amp; beyond</div>`,
			"Guide Ahead & Beyond",
		},
		{
			"rerun substitution",
			`<div class="fnameheader">ideal city 复刻</div>`,
			"Ideal City Rerun",
		},
		{
			"chinese header ignored",
			`<div class="fnameheader">理想城：长夏狂欢纪</div>`,
			"",
		},
		{
			"no header",
			`<div class="otherheader">whatever</div>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectTitle(tt.html); got != tt.want {
				t.Errorf("detectTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

// Running a strategy once over two disjoint documents and merging must equal
// running it once over the concatenation.
func TestListAndGridAdditivity(t *testing.T) {
	const docA = `<ul><li><span class="n">合成玉</span><span class="q">100</span></li></ul>
		<table><tr><td><a title="固源岩组">固源岩组</a><span>7</span></td></tr></table>`
	const docB = `<ul><li><span class="n">合成玉</span><span class="q">50</span></li></ul>
		<table><tr><td><a title="聚酸酯组">聚酸酯组</a><span>3</span></td></tr></table>`

	cat := testCatalog()

	split := models.RewardMap{}
	for _, page := range []string{docA, docB} {
		ex := &Extraction{Rewards: models.RewardMap{}}
		sel := selection(t, page)
		extractListRewards(sel, cat, ex)
		extractGridRewards(sel, cat, ex)
		split.Merge(ex.Rewards)
	}

	joined := &Extraction{Rewards: models.RewardMap{}}
	sel := selection(t, docA+docB)
	extractListRewards(sel, cat, joined)
	extractGridRewards(sel, cat, joined)

	assertRewards(t, split, joined.Rewards)
}

func TestRewardMapDropsNonPositive(t *testing.T) {
	m := models.RewardMap{}
	m.Add("4003", 0)
	m.Add("4003", -5)
	m.Add("", 10)
	if len(m) != 0 {
		t.Fatalf("non-positive contributions stored: %v", m)
	}
	m.Add("4003", 3)
	m.Add("4003", 2)
	if m["4003"] != 5 {
		t.Errorf("accumulation = %d, want 5", m["4003"])
	}
}

func assertRewards(t *testing.T, got, want models.RewardMap) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("rewards = %v, want %v", got, want)
	}
	for id, n := range want {
		if got[id] != n {
			t.Errorf("rewards[%s] = %d, want %d", id, got[id], n)
		}
	}
}
