package services

import (
	"sort"
	"time"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
)

const DefaultLeaderboardSize = 10

type RankedEntry struct {
	SubmissionID string
	TeamID       string
	TeamToken    string
	FileName     string
	Score        float64
	ScoreChrF    *float64
	CreatedAt    time.Time
	Sequence     int64
}

type TestSetRanking struct {
	TestSet entities.TestSet
	Entries []RankedEntry
}

// BuildLeaderboard ranks valid submissions of every active test set, keeping
// the catalog order of testSets. Each group is cut to size entries and groups
// without valid submissions are dropped.
func BuildLeaderboard(
	testSets []entities.TestSet,
	submissions []entities.Submission,
	tokensByTeam map[string]string,
	size int,
) []TestSetRanking {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}

	byTestSet := make(map[string][]entities.Submission)
	for _, item := range submissions {
		if !item.IsValid() {
			continue
		}
		byTestSet[item.TestSetID] = append(byTestSet[item.TestSetID], item)
	}

	groups := newRankingGroups()
	for _, testSet := range testSets {
		if !testSet.IsActive {
			continue
		}
		items := byTestSet[testSet.TestSetID]
		if len(items) == 0 {
			continue
		}
		sortByScore(items)
		if len(items) > size {
			items = items[:size]
		}
		for _, item := range items {
			groups.add(testSet, toRankedEntry(item, tokensByTeam[item.TeamID]))
		}
	}
	return groups.result()
}

// BuildTeamView lists every valid submission owned by teamID across all test
// sets, active or not. Groups and entries follow test set name, source
// language, target language, then score.
func BuildTeamView(
	teamID string,
	teamToken string,
	testSets []entities.TestSet,
	submissions []entities.Submission,
) []TestSetRanking {
	catalog := make(map[string]entities.TestSet, len(testSets))
	for _, testSet := range testSets {
		catalog[testSet.TestSetID] = testSet
	}

	owned := make([]entities.Submission, 0, len(submissions))
	for _, item := range submissions {
		if item.TeamID != teamID || !item.IsValid() {
			continue
		}
		if _, ok := catalog[item.TestSetID]; !ok {
			continue
		}
		owned = append(owned, item)
	}

	sortByScore(owned)
	sort.SliceStable(owned, func(i, j int) bool {
		left := catalog[owned[i].TestSetID]
		right := catalog[owned[j].TestSetID]
		if left.Name != right.Name {
			return left.Name < right.Name
		}
		if left.SourceLanguage != right.SourceLanguage {
			return left.SourceLanguage < right.SourceLanguage
		}
		return left.TargetLanguage < right.TargetLanguage
	})

	groups := newRankingGroups()
	for _, item := range owned {
		groups.add(catalog[item.TestSetID], toRankedEntry(item, teamToken))
	}
	return groups.result()
}

// sortByScore orders by score descending; equal scores keep ledger order.
func sortByScore(items []entities.Submission) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
	sort.SliceStable(items, func(i, j int) bool {
		return *items[i].Score > *items[j].Score
	})
}

func toRankedEntry(item entities.Submission, token string) RankedEntry {
	entry := RankedEntry{
		SubmissionID: item.SubmissionID,
		TeamID:       item.TeamID,
		TeamToken:    token,
		FileName:     item.FileName,
		Score:        *item.Score,
		CreatedAt:    item.CreatedAt,
		Sequence:     item.Sequence,
	}
	if item.ScoreChrF != nil {
		chrf := *item.ScoreChrF
		entry.ScoreChrF = &chrf
	}
	return entry
}

// rankingGroups appends entries under their test set, keeping first-seen order.
type rankingGroups struct {
	index  map[string]int
	groups []TestSetRanking
}

func newRankingGroups() *rankingGroups {
	return &rankingGroups{index: make(map[string]int)}
}

func (g *rankingGroups) add(testSet entities.TestSet, entry RankedEntry) {
	position, ok := g.index[testSet.TestSetID]
	if !ok {
		position = len(g.groups)
		g.index[testSet.TestSetID] = position
		g.groups = append(g.groups, TestSetRanking{TestSet: testSet})
	}
	g.groups[position].Entries = append(g.groups[position].Entries, entry)
}

func (g *rankingGroups) result() []TestSetRanking {
	if g.groups == nil {
		return []TestSetRanking{}
	}
	return g.groups
}
