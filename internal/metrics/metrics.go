// Package metrics scores multi-class predictions against ground truth.
package metrics

// ClassReport holds per-class scores. Ratios with a zero denominator are 0.
type ClassReport struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Summary is the full evaluation of one prediction run.
type Summary struct {
	Rows             int                    `json:"evaluated_rows"`
	Accuracy         float64                `json:"accuracy"`
	MacroF1          float64                `json:"macro_f1"`
	BalancedAccuracy float64                `json:"balanced_accuracy"`
	Confusion        [][]int                `json:"confusion_matrix"`
	Report           map[string]ClassReport `json:"classification_report"`
}

// Accuracy returns the share of positions where truth and pred agree.
func Accuracy(truth, pred []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	c := 0
	for i := range truth {
		if truth[i] == pred[i] {
			c++
		}
	}
	return float64(c) / float64(len(truth))
}

// ConfusionMatrix counts (truth, pred) pairs over classes [0, k). Rows are
// true classes, columns predicted ones. Out-of-range indices are ignored.
func ConfusionMatrix(truth, pred []int, k int) [][]int {
	m := make([][]int, k)
	for i := range m {
		m[i] = make([]int, k)
	}
	for i := range truth {
		t, p := truth[i], pred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			continue
		}
		m[t][p]++
	}
	return m
}

// PerClass derives precision, recall, F1 and support for each class from a
// confusion matrix.
func PerClass(cm [][]int) []ClassReport {
	k := len(cm)
	out := make([]ClassReport, k)
	for c := 0; c < k; c++ {
		tp := cm[c][c]
		support, predicted := 0, 0
		for j := 0; j < k; j++ {
			support += cm[c][j]
			predicted += cm[j][c]
		}
		r := ClassReport{Support: support}
		if predicted > 0 {
			r.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			r.Recall = float64(tp) / float64(support)
		}
		if r.Precision+r.Recall > 0 {
			r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
		}
		out[c] = r
	}
	return out
}

// MacroF1 averages F1 over the classes that occur in truth or predictions.
func MacroF1(cm [][]int) float64 {
	reports := PerClass(cm)
	sum, n := 0.0, 0
	for c, r := range reports {
		if r.Support == 0 && columnSum(cm, c) == 0 {
			continue
		}
		sum += r.F1
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// BalancedAccuracy averages recall over the classes present in truth.
func BalancedAccuracy(cm [][]int) float64 {
	sum, n := 0.0, 0
	for _, r := range PerClass(cm) {
		if r.Support == 0 {
			continue
		}
		sum += r.Recall
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func columnSum(cm [][]int, c int) int {
	s := 0
	for _, row := range cm {
		s += row[c]
	}
	return s
}

// Evaluate scores predictions over classes named by names. The report is
// keyed by class name plus "macro avg" and "weighted avg" rows.
func Evaluate(truth, pred []int, names []string) Summary {
	k := len(names)
	cm := ConfusionMatrix(truth, pred, k)
	per := PerClass(cm)

	report := make(map[string]ClassReport, k+2)
	var macro, weighted ClassReport
	total := 0
	for c, r := range per {
		report[names[c]] = r
		macro.Precision += r.Precision
		macro.Recall += r.Recall
		macro.F1 += r.F1
		weighted.Precision += r.Precision * float64(r.Support)
		weighted.Recall += r.Recall * float64(r.Support)
		weighted.F1 += r.F1 * float64(r.Support)
		total += r.Support
	}
	if k > 0 {
		macro.Precision /= float64(k)
		macro.Recall /= float64(k)
		macro.F1 /= float64(k)
	}
	if total > 0 {
		weighted.Precision /= float64(total)
		weighted.Recall /= float64(total)
		weighted.F1 /= float64(total)
	}
	macro.Support, weighted.Support = total, total
	report["macro avg"] = macro
	report["weighted avg"] = weighted

	return Summary{
		Rows:             len(truth),
		Accuracy:         Accuracy(truth, pred),
		MacroF1:          MacroF1(cm),
		BalancedAccuracy: BalancedAccuracy(cm),
		Confusion:        cm,
		Report:           report,
	}
}
