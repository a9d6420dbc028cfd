package scorer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"riskscan/internal/vectorizer"
)

// Options configure logistic regression training.
type Options struct {
	// C is the inverse L2 regularisation strength.
	C                 float64 `json:"c" yaml:"c"`
	MaxIterations     int     `json:"max_iterations" yaml:"max_iterations"`
	GradientThreshold float64 `json:"gradient_threshold" yaml:"gradient_threshold"`
}

// DefaultOptions mirrors C=1.0, max_iter=1000.
func DefaultOptions() Options {
	return Options{C: 1.0, MaxIterations: 1000, GradientThreshold: 1e-6}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.C <= 0 {
		o.C = d.C
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.GradientThreshold <= 0 {
		o.GradientThreshold = d.GradientThreshold
	}
	return o
}

var (
	ErrNoSamples   = errors.New("no training samples")
	ErrSingleClass = errors.New("training labels contain a single class")
)

// Scorer is a binary logistic regression model over TF-IDF vectors.
type Scorer struct {
	weights      []float64
	intercept    float64
	fingerprint  string
	classWeights [2]float64
	iterations   int
	status       string
}

// ClassWeights returns balanced inverse-frequency weights n/(2*count(class)).
func ClassWeights(labels []int) ([2]float64, error) {
	var counts [2]int
	for i, y := range labels {
		if y != 0 && y != 1 {
			return [2]float64{}, fmt.Errorf("label %d at index %d is not binary", y, i)
		}
		counts[y]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return [2]float64{}, ErrSingleClass
	}
	n := float64(len(labels))
	return [2]float64{n / (2 * float64(counts[0])), n / (2 * float64(counts[1]))}, nil
}

// Fit trains a class-balanced, L2-regularised logistic regression with
// L-BFGS. fingerprint identifies the vectorizer that produced features.
func Fit(features []vectorizer.FeatureVector, labels []int, fingerprint string, opts Options) (*Scorer, error) {
	opts = opts.withDefaults()

	if len(features) == 0 {
		return nil, ErrNoSamples
	}
	if len(features) != len(labels) {
		return nil, fmt.Errorf("got %d feature vectors but %d labels", len(features), len(labels))
	}
	dim := features[0].Dim
	for i, fv := range features {
		if fv.Dim != dim {
			return nil, fmt.Errorf("feature vector %d has dimension %d, want %d", i, fv.Dim, dim)
		}
	}

	cw, err := ClassWeights(labels)
	if err != nil {
		return nil, err
	}

	obj := newObjective(features, labels, cw, dim, opts.C)
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return obj.eval(x, nil) },
		Grad: func(grad, x []float64) { obj.eval(x, grad) },
	}
	settings := &optimize.Settings{
		GradientThreshold: opts.GradientThreshold,
		MajorIterations:   opts.MaxIterations,
	}

	result, err := optimize.Minimize(problem, make([]float64, dim+1), settings, &optimize.LBFGS{})
	if result == nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	// A line search that stalls near the optimum still reports an error;
	// the best location found is usable as long as it is finite.
	for _, x := range result.X {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("optimize diverged (status %v): %v", result.Status, err)
		}
	}

	status := result.Status.String()
	if err != nil {
		status = fmt.Sprintf("%s: %v", status, err)
	}
	return &Scorer{
		weights:      append([]float64(nil), result.X[:dim]...),
		intercept:    result.X[dim],
		fingerprint:  fingerprint,
		classWeights: cw,
		iterations:   result.Stats.MajorIterations,
		status:       status,
	}, nil
}

// objective is the sample-weighted mean log loss plus ||w||^2/(2*C*sum(sw)).
// Its minimiser equals that of sum(sw*loss)*C + ||w||^2/2. The intercept is
// stored at x[dim] and is not penalised.
type objective struct {
	features      []vectorizer.FeatureVector
	labels        []float64
	sampleWeights []float64
	dim           int
	totalWeight   float64
	reg           float64
}

func newObjective(features []vectorizer.FeatureVector, labels []int, cw [2]float64, dim int, c float64) *objective {
	o := &objective{
		features:      features,
		labels:        make([]float64, len(labels)),
		sampleWeights: make([]float64, len(labels)),
		dim:           dim,
	}
	for i, y := range labels {
		o.labels[i] = float64(y)
		o.sampleWeights[i] = cw[y]
		o.totalWeight += cw[y]
	}
	o.reg = 1 / (2 * c * o.totalWeight)
	return o
}

func (o *objective) eval(x, grad []float64) float64 {
	w, b := x[:o.dim], x[o.dim]
	if grad != nil {
		for i := range grad {
			grad[i] = 0
		}
	}

	var loss float64
	for i, fv := range o.features {
		z := fv.Dot(w) + b
		y := o.labels[i]
		sw := o.sampleWeights[i]
		if y == 1 {
			loss += sw * softplus(-z)
		} else {
			loss += sw * softplus(z)
		}
		if grad != nil {
			g := sw * (sigmoid(z) - y)
			for k, idx := range fv.Indices {
				grad[idx] += g * fv.Values[k]
			}
			grad[o.dim] += g
		}
	}

	loss = loss/o.totalWeight + o.reg*floats.Dot(w, w)
	if grad != nil {
		floats.Scale(1/o.totalWeight, grad)
		floats.AddScaled(grad[:o.dim], 2*o.reg, w)
	}
	return loss
}

// softplus computes log(1+exp(t)) without overflow.
func softplus(t float64) float64 {
	if t > 0 {
		return t + math.Log1p(math.Exp(-t))
	}
	return math.Log1p(math.Exp(t))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Decision returns the linear score w.x + b.
func (s *Scorer) Decision(fv vectorizer.FeatureVector) float64 {
	return fv.Dot(s.weights) + s.intercept
}

// PredictProbability returns the probability of the positive class.
func (s *Scorer) PredictProbability(fv vectorizer.FeatureVector) float64 {
	return sigmoid(s.Decision(fv))
}

// PredictProbabilities scores each vector, preserving order.
func (s *Scorer) PredictProbabilities(fvs []vectorizer.FeatureVector) []float64 {
	out := make([]float64, len(fvs))
	for i, fv := range fvs {
		out[i] = s.PredictProbability(fv)
	}
	return out
}

// Predict returns 1 when the positive-class probability exceeds 0.5.
func (s *Scorer) Predict(fv vectorizer.FeatureVector) int {
	if s.Decision(fv) > 0 {
		return 1
	}
	return 0
}

// Dim is the number of weights, excluding the intercept.
func (s *Scorer) Dim() int { return len(s.weights) }

// Fingerprint is the vocabulary fingerprint the scorer was trained against.
func (s *Scorer) Fingerprint() string { return s.fingerprint }

// Iterations is the number of L-BFGS iterations used in training.
func (s *Scorer) Iterations() int { return s.iterations }

// State is the persisted form of a Scorer.
type State struct {
	Weights               []float64  `json:"weights"`
	Intercept             float64    `json:"intercept"`
	VocabularyFingerprint string     `json:"vocabulary_fingerprint"`
	ClassWeights          [2]float64 `json:"class_weights"`
	Iterations            int        `json:"iterations"`
	Status                string     `json:"status,omitempty"`
}

// State snapshots the scorer for persistence.
func (s *Scorer) State() State {
	return State{
		Weights:               append([]float64(nil), s.weights...),
		Intercept:             s.intercept,
		VocabularyFingerprint: s.fingerprint,
		ClassWeights:          s.classWeights,
		Iterations:            s.iterations,
		Status:                s.status,
	}
}

// FromState restores a scorer.
func FromState(st State) (*Scorer, error) {
	if st.VocabularyFingerprint == "" {
		return nil, errors.New("scorer state has no vocabulary fingerprint")
	}
	for i, w := range st.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("scorer weight %d is not finite", i)
		}
	}
	return &Scorer{
		weights:      append([]float64(nil), st.Weights...),
		intercept:    st.Intercept,
		fingerprint:  st.VocabularyFingerprint,
		classWeights: st.ClassWeights,
		iterations:   st.Iterations,
		status:       st.Status,
	}, nil
}
