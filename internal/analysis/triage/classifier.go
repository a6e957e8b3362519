package triage

import "strings"

// Needs 表示相談者が暗に求めている対話モード。
type Needs string

const (
	NeedsListening Needs = "listening"
	NeedsSolution  Needs = "solution"
	NeedsThinking  Needs = "thinking"
)

// Label returns the display name shown next to the needs badge.
func (n Needs) Label() string {
	switch n {
	case NeedsSolution:
		return "解決策提示"
	case NeedsThinking:
		return "共に考える"
	default:
		return "傾聴重視"
	}
}

type riskTier struct {
	level    int
	weight   int
	keywords []string
}

// Tiers are scanned from the most severe down. Matching is plain substring
// containment: the keyword lists are Japanese and carry no word boundaries,
// so tokenized matching would miss compounds like 「死にたいです」.
var riskTiers = []riskTier{
	{
		level:  5, // 即座の専門家介入が必要
		weight: 10,
		keywords: []string{
			"死にたい", "自殺", "消えたい", "生きる意味", "死のう",
			"飛び降り", "首を", "リストカット", "薬を大量に",
		},
	},
	{
		level:  4, // 専門家への連携推奨
		weight: 7,
		keywords: []string{
			"誰も信じられない", "絶望", "助けて", "限界", "耐えられない",
			"居場所がない", "孤独", "消えたい", "不登校", "行けない",
		},
	},
	{
		level:  3, // 注意深い傾聴
		weight: 4,
		keywords: []string{
			"辛い", "しんどい", "苦しい", "ストレス", "眠れない",
			"食欲がない", "疲れた", "不安", "心配", "プレッシャー",
		},
	},
	{
		level:  2,
		weight: 2,
		keywords: []string{
			"悩み", "困っている", "どうしよう", "迷っている",
			"友達", "勉強", "進路", "部活", "先生",
		},
	},
	{
		level:    1,
		weight:   1,
		keywords: []string{"相談", "聞いて", "話したい", "アドバイス"},
	},
}

var needsBuckets = []struct {
	needs    Needs
	keywords []string
}{
	{NeedsListening, []string{
		"聞いてほしい", "話を聞いて", "誰かに話したい", "吐き出したい",
		"わかってほしい", "共感", "理解してほしい",
	}},
	{NeedsSolution, []string{
		"どうすれば", "解決", "方法", "アドバイス", "改善",
		"対策", "やり方", "教えて",
	}},
	{NeedsThinking, []string{
		"どう思う", "考えたい", "一緒に", "選択", "決断",
		"進路", "どちらが", "迷っている",
	}},
}

// Classify scores the text against every risk tier and returns the tier with
// the highest weighted score plus every keyword that matched, in tier order.
// Exact ties resolve toward the more severe tier. No keyword at all means
// level 1 with an empty match list; the function is total and never fails.
func Classify(text string) (int, []string) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return 1, nil
	}

	var matched []string
	bestLevel := 1
	bestScore := 0
	for _, tier := range riskTiers {
		score := 0
		for _, keyword := range tier.keywords {
			if strings.Contains(normalized, keyword) {
				score += tier.weight
				matched = append(matched, keyword)
			}
		}
		if score > bestScore {
			bestScore = score
			bestLevel = tier.level
		}
	}

	return bestLevel, matched
}

// ClassifyNeeds counts keyword hits per category and returns the category
// with the most. Listening is both the default and the tie-break winner.
func ClassifyNeeds(text string) Needs {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return NeedsListening
	}

	best := NeedsListening
	bestCount := 0
	for _, bucket := range needsBuckets {
		count := 0
		for _, keyword := range bucket.keywords {
			if strings.Contains(normalized, keyword) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = bucket.needs
		}
	}

	return best
}
