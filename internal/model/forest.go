// Package model implements the per-user classifier bundle: a random forest
// over feature vectors, the label codec mapping class indices to command
// labels, and the durable bundle store.
//
// The forest is trained from scratch on every call; there is no incremental
// learning. Training is deterministic for a fixed seed, so retraining on the
// same example set reproduces the same model.
package model

import (
	"math"
	"math/rand"
	"sort"
)

// ForestConfig holds the random-forest training parameters.
type ForestConfig struct {
	// NumTrees is the ensemble size.
	NumTrees int

	// MaxDepth limits tree depth; 0 means unlimited.
	MaxDepth int

	// MinLeaf is the minimum weighted sample count required to keep
	// splitting a node.
	MinLeaf int

	// Seed fixes the bootstrap and feature-subsampling RNG.
	Seed int64
}

// DefaultForestConfig mirrors a 200-tree, unlimited-depth, balanced-weight
// forest, robust to feature scale differences and class imbalance while
// producing usable class probabilities.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{NumTrees: 200, MaxDepth: 0, MinLeaf: 1, Seed: 0}
}

// node is one tree node. Leaves have Feature == -1 and carry the class
// distribution; internal nodes route on Feature <= Threshold.
type node struct {
	Feature   int       `msgpack:"f"`
	Threshold float64   `msgpack:"t"`
	Left      int       `msgpack:"l"`
	Right     int       `msgpack:"r"`
	Probs     []float64 `msgpack:"p,omitempty"`
}

// tree is a single decision tree stored as a flat node slice; node 0 is the
// root.
type tree struct {
	Nodes []node `msgpack:"n"`
}

// Forest is a trained ensemble of decision trees with probability output.
// Read-only after training; safe for concurrent prediction.
type Forest struct {
	NumClasses  int    `msgpack:"classes"`
	NumFeatures int    `msgpack:"features"`
	Trees       []tree `msgpack:"trees"`
}

// TrainForest fits a forest on features (one row per example) against class
// indices in [0, numClasses). Classes are reweighted inversely to their
// frequency so minority commands are not drowned out. features must be
// non-empty and rectangular.
func TrainForest(features [][]float64, classes []int, numClasses int, cfg ForestConfig) *Forest {
	n := len(features)
	numFeatures := len(features[0])

	// Balanced class weights: n / (numClasses * count[c]).
	counts := make([]float64, numClasses)
	for _, c := range classes {
		counts[c]++
	}
	classWeight := make([]float64, numClasses)
	for c := range classWeight {
		if counts[c] > 0 {
			classWeight[c] = float64(n) / (float64(numClasses) * counts[c])
		}
	}

	mtry := int(math.Sqrt(float64(numFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	f := &Forest{
		NumClasses:  numClasses,
		NumFeatures: numFeatures,
		Trees:       make([]tree, cfg.NumTrees),
	}
	for t := range cfg.NumTrees {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))

		// Bootstrap sample with replacement.
		indices := make([]int, n)
		for i := range indices {
			indices[i] = rng.Intn(n)
		}

		b := &treeBuilder{
			features:    features,
			classes:     classes,
			classWeight: classWeight,
			numClasses:  numClasses,
			mtry:        mtry,
			maxDepth:    cfg.MaxDepth,
			minLeaf:     cfg.MinLeaf,
			rng:         rng,
		}
		b.grow(indices, 0)
		f.Trees[t] = tree{Nodes: b.nodes}
	}
	return f
}

// PredictProba returns the class probability distribution for x, averaged
// over all trees. The result has NumClasses elements summing to 1.
func (f *Forest) PredictProba(x []float64) []float64 {
	probs := make([]float64, f.NumClasses)
	if len(f.Trees) == 0 {
		return probs
	}
	for _, t := range f.Trees {
		i := 0
		for {
			nd := &t.Nodes[i]
			if nd.Feature < 0 {
				for c, p := range nd.Probs {
					probs[c] += p
				}
				break
			}
			if x[nd.Feature] <= nd.Threshold {
				i = nd.Left
			} else {
				i = nd.Right
			}
		}
	}
	inv := 1.0 / float64(len(f.Trees))
	for c := range probs {
		probs[c] *= inv
	}
	return probs
}

// treeBuilder grows one CART tree on a bootstrap sample.
type treeBuilder struct {
	features    [][]float64
	classes     []int
	classWeight []float64
	numClasses  int
	mtry        int
	maxDepth    int
	minLeaf     int
	rng         *rand.Rand

	nodes []node
}

// grow recursively builds the subtree for the given sample indices and
// returns its node index.
func (b *treeBuilder) grow(indices []int, depth int) int {
	weights := make([]float64, b.numClasses)
	var total float64
	for _, i := range indices {
		w := b.classWeight[b.classes[i]]
		weights[b.classes[i]] += w
		total += w
	}

	pure := false
	for _, w := range weights {
		if w == total {
			pure = true
			break
		}
	}

	if pure || len(indices) < 2*b.minLeaf || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return b.leaf(weights, total)
	}

	feature, threshold, ok := b.bestSplit(indices, weights, total)
	if !ok {
		return b.leaf(weights, total)
	}

	var left, right []int
	for _, i := range indices {
		if b.features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return b.leaf(weights, total)
	}

	// Reserve this node's slot before recursing so the root stays at 0.
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: feature, Threshold: threshold})
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

// leaf appends a leaf node holding the normalised class distribution.
func (b *treeBuilder) leaf(weights []float64, total float64) int {
	probs := make([]float64, b.numClasses)
	if total > 0 {
		for c, w := range weights {
			probs[c] = w / total
		}
	}
	b.nodes = append(b.nodes, node{Feature: -1, Probs: probs})
	return len(b.nodes) - 1
}

// bestSplit evaluates mtry random features and returns the split with the
// lowest weighted gini impurity, if any improving split exists.
func (b *treeBuilder) bestSplit(indices []int, parentWeights []float64, parentTotal float64) (int, float64, bool) {
	parentGini := gini(parentWeights, parentTotal)

	type sample struct {
		value  float64
		class  int
		weight float64
	}

	bestFeature, bestThreshold := -1, 0.0
	bestScore := parentGini

	order := b.rng.Perm(len(b.features[0]))
	for _, feature := range order[:b.mtry] {
		samples := make([]sample, len(indices))
		for j, i := range indices {
			samples[j] = sample{
				value:  b.features[i][feature],
				class:  b.classes[i],
				weight: b.classWeight[b.classes[i]],
			}
		}
		sort.Slice(samples, func(a, c int) bool { return samples[a].value < samples[c].value })

		leftWeights := make([]float64, b.numClasses)
		var leftTotal float64
		for j := 0; j < len(samples)-1; j++ {
			leftWeights[samples[j].class] += samples[j].weight
			leftTotal += samples[j].weight

			if samples[j].value == samples[j+1].value {
				continue
			}

			rightTotal := parentTotal - leftTotal
			var rightGini float64
			{
				var sumSq float64
				for c := range b.numClasses {
					d := parentWeights[c] - leftWeights[c]
					sumSq += d * d
				}
				rightGini = 1 - sumSq/(rightTotal*rightTotal)
			}
			leftGini := gini(leftWeights, leftTotal)

			score := (leftTotal*leftGini + rightTotal*rightGini) / parentTotal
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = feature
				bestThreshold = (samples[j].value + samples[j+1].value) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

// gini computes the gini impurity of a weighted class distribution.
func gini(weights []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	var sumSq float64
	for _, w := range weights {
		sumSq += w * w
	}
	return 1 - sumSq/(total*total)
}
