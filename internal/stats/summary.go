package stats

import (
	"sort"
	"time"
)

// Bucket aggregates records sharing a key (skill or domain).
type Bucket struct {
	Key       string
	Attempted int
	Correct   int
	TotalTime time.Duration
}

// Accuracy returns Correct/Attempted, or 0 with nothing attempted.
func (b Bucket) Accuracy() float64 {
	if b.Attempted == 0 {
		return 0
	}
	return float64(b.Correct) / float64(b.Attempted)
}

// AverageTime returns the mean time per answer.
func (b Bucket) AverageTime() time.Duration {
	if b.Attempted == 0 {
		return 0
	}
	return b.TotalTime / time.Duration(b.Attempted)
}

// Summary is the aggregate view over a set of records.
type Summary struct {
	Overall  Bucket
	BySkill  []Bucket
	ByDomain []Bucket
}

// Summarize aggregates records. Buckets are sorted by key.
func Summarize(records []Record) Summary {
	skills := map[string]*Bucket{}
	domains := map[string]*Bucket{}
	sum := Summary{Overall: Bucket{Key: "all"}}

	add := func(b *Bucket, r Record) {
		b.Attempted++
		if r.Statistic.IsCorrect {
			b.Correct++
		}
		b.TotalTime += time.Duration(r.Statistic.Time) * time.Millisecond
	}

	for _, r := range records {
		add(&sum.Overall, r)
		add(bucketFor(skills, r.SkillCd), r)
		add(bucketFor(domains, r.PrimaryClassCd), r)
	}

	sum.BySkill = sortedBuckets(skills)
	sum.ByDomain = sortedBuckets(domains)
	return sum
}

func bucketFor(m map[string]*Bucket, key string) *Bucket {
	if key == "" {
		key = "unknown"
	}
	b, ok := m[key]
	if !ok {
		b = &Bucket{Key: key}
		m[key] = b
	}
	return b
}

func sortedBuckets(m map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
