package model

import "math"

// ScoreSet holds the five SEO sub-scores for one description. Each score is
// in [0, 100].
type ScoreSet struct {
	KeywordDensity   int `json:"keyword_density"`
	ContentQuality   int `json:"content_quality"`
	BrandConsistency int `json:"brand_consistency"`
	Uniqueness       int `json:"uniqueness"`
	Readability      int `json:"readability"`
}

// ScoreAverages holds per-brand sub-score means rounded to two decimals.
type ScoreAverages struct {
	KeywordDensity   float64 `json:"keyword_density"`
	ContentQuality   float64 `json:"content_quality"`
	BrandConsistency float64 `json:"brand_consistency"`
	Uniqueness       float64 `json:"uniqueness"`
	Readability      float64 `json:"readability"`
}

// AverageScores averages each sub-score independently. An empty input
// yields zero averages.
func AverageScores(sets []ScoreSet) ScoreAverages {
	if len(sets) == 0 {
		return ScoreAverages{}
	}
	var kd, cq, bc, un, rd int
	for _, s := range sets {
		kd += s.KeywordDensity
		cq += s.ContentQuality
		bc += s.BrandConsistency
		un += s.Uniqueness
		rd += s.Readability
	}
	n := float64(len(sets))
	return ScoreAverages{
		KeywordDensity:   round2(float64(kd) / n),
		ContentQuality:   round2(float64(cq) / n),
		BrandConsistency: round2(float64(bc) / n),
		Uniqueness:       round2(float64(un) / n),
		Readability:      round2(float64(rd) / n),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BrandAnalytics is the per-brand artifact consumed by report generation.
type BrandAnalytics struct {
	Keywords     []string      `json:"keywords"`
	AvgScores    ScoreAverages `json:"avg_scores"`
	SampleScores []ScoreSet    `json:"sample_scores"`
}
