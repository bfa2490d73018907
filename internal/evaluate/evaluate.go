// Package evaluate scores a clustered output tree against categories encoded
// in the image file names.
package evaluate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Yutarop/imgcluster/internal/imageio"
)

// ErrNoClusters is returned when the directory holds no cluster_* folders.
var ErrNoClusters = errors.New("no cluster folders found")

// Categorizer maps a file name to its ground-truth category.
type Categorizer func(name string) string

// PrefixCategorizer uses the first n lowercase characters of the file name.
func PrefixCategorizer(n int) Categorizer {
	return func(name string) string {
		name = strings.ToLower(name)
		if n <= 0 || len(name) <= n {
			return name
		}
		return name[:n]
	}
}

// Cluster is the category breakdown of one cluster folder.
type Cluster struct {
	Name        string
	Counts      map[string]int
	Total       int
	Predominant string
	Misplaced   int
}

// Evaluation is the result of Evaluate.
type Evaluation struct {
	Clusters  []Cluster
	Total     int
	Misplaced int
}

// Purity is the share of images whose category is their cluster's
// predominant one.
func (e *Evaluation) Purity() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Total-e.Misplaced) / float64(e.Total)
}

// Categories lists every category seen in any cluster, sorted.
func (e *Evaluation) Categories() []string {
	seen := make(map[string]bool)
	for _, c := range e.Clusters {
		for cat := range c.Counts {
			seen[cat] = true
		}
	}
	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// Evaluate counts the images of every cluster_* folder under dir by
// category. Folders are visited in cluster id order. Ties for predominant
// category go to a category not yet predominant in an earlier cluster.
func Evaluate(dir string, categorize Categorizer, exts []string) (*Evaluation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "cluster_") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoClusters, dir)
	}
	sort.Slice(names, func(i, j int) bool { return lessClusterName(names[i], names[j]) })

	eval := &Evaluation{}
	used := make(map[string]bool)
	for _, name := range names {
		paths, err := imageio.Scan(filepath.Join(dir, name), exts)
		if err != nil {
			return nil, err
		}

		c := Cluster{Name: name, Counts: make(map[string]int)}
		for _, path := range paths {
			c.Counts[categorize(filepath.Base(path))]++
			c.Total++
		}
		c.Predominant = predominant(c.Counts, used)
		if c.Predominant != "" {
			used[c.Predominant] = true
		}
		c.Misplaced = c.Total - c.Counts[c.Predominant]

		eval.Clusters = append(eval.Clusters, c)
		eval.Total += c.Total
		eval.Misplaced += c.Misplaced
	}
	return eval, nil
}

// predominant picks the most frequent category, preferring among ties the
// alphabetically first one not in used.
func predominant(counts map[string]int, used map[string]bool) string {
	best := 0
	for _, n := range counts {
		best = max(best, n)
	}
	if best == 0 {
		return ""
	}

	var tied []string
	for cat, n := range counts {
		if n == best {
			tied = append(tied, cat)
		}
	}
	sort.Strings(tied)
	for _, cat := range tied {
		if !used[cat] {
			return cat
		}
	}
	return tied[0]
}

func lessClusterName(a, b string) bool {
	ia, errA := strconv.Atoi(strings.TrimPrefix(a, "cluster_"))
	ib, errB := strconv.Atoi(strings.TrimPrefix(b, "cluster_"))
	switch {
	case errA == nil && errB == nil:
		return ia < ib
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
