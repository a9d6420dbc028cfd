package training

import (
	"fmt"
	"strings"
)

// ClassMetrics holds per-class precision, recall and F1.
type ClassMetrics struct {
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation is the held-out test report.
type Evaluation struct {
	Accuracy float64        `json:"accuracy"`
	Classes  []ClassMetrics `json:"classes"`
	// Confusion[actual][predicted].
	Confusion [2][2]int `json:"confusion_matrix"`
	Total     int       `json:"total"`
}

// Evaluate compares binary predictions with the truth. names[0] labels class
// 0 and names[1] class 1. Undefined ratios are reported as 0.
func Evaluate(truth, pred []int, names [2]string) (Evaluation, error) {
	if len(truth) != len(pred) {
		return Evaluation{}, fmt.Errorf("got %d labels but %d predictions", len(truth), len(pred))
	}

	var ev Evaluation
	ev.Total = len(truth)
	correct := 0
	for i := range truth {
		if truth[i] < 0 || truth[i] > 1 || pred[i] < 0 || pred[i] > 1 {
			return Evaluation{}, fmt.Errorf("non-binary label at index %d", i)
		}
		ev.Confusion[truth[i]][pred[i]]++
		if truth[i] == pred[i] {
			correct++
		}
	}
	if ev.Total > 0 {
		ev.Accuracy = float64(correct) / float64(ev.Total)
	}

	for c := 0; c < 2; c++ {
		tp := ev.Confusion[c][c]
		predicted := ev.Confusion[0][c] + ev.Confusion[1][c]
		support := ev.Confusion[c][0] + ev.Confusion[c][1]

		m := ClassMetrics{Name: names[c], Support: support}
		m.Precision = ratio(tp, predicted)
		m.Recall = ratio(tp, support)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		ev.Classes = append(ev.Classes, m)
	}
	return ev, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// String renders a plain-text classification report.
func (ev Evaluation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range ev.Classes {
		fmt.Fprintf(&b, "%-14s %9.2f %9.2f %9.2f %9d\n", c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "\n%-14s %29.2f %9d\n", "accuracy", ev.Accuracy, ev.Total)
	fmt.Fprintf(&b, "\nconfusion matrix (rows=actual, cols=predicted)\n")
	for c := 0; c < 2; c++ {
		fmt.Fprintf(&b, "%-14s %9d %9d\n", ev.Classes[c].Name, ev.Confusion[c][0], ev.Confusion[c][1])
	}
	return b.String()
}
