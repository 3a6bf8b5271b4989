package validation

import (
	"math"
	"sort"
)

// Overfitting risk levels
const (
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
)

// Summarize aggregates fold results. Degradation is the relative drop from
// average in-sample to average out-of-sample return.
func Summarize(results []FoldResult) *WalkForwardSummary {
	if len(results) == 0 {
		return &WalkForwardSummary{}
	}
	sorted := append([]FoldResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Fold < sorted[j].Fold })

	var trainReturns, testReturns, trainDD, testDD []float64
	for _, r := range sorted {
		trainReturns = append(trainReturns, r.TrainReturn)
		testReturns = append(testReturns, r.TestReturn)
		trainDD = append(trainDD, r.TrainDrawdown)
		testDD = append(testDD, r.TestDrawdown)
	}

	avgTrain := average(trainReturns)
	avgTest := average(testReturns)
	degradation := (avgTrain - avgTest) / math.Max(0.0001, math.Abs(avgTrain))

	risk := RiskLow
	switch {
	case degradation > 0.30:
		risk = RiskHigh
	case degradation > 0.15:
		risk = RiskModerate
	}

	return &WalkForwardSummary{
		Results:              sorted,
		AverageTrainReturn:   avgTrain,
		AverageTestReturn:    avgTest,
		TrainReturnStdDev:    stdDev(trainReturns),
		TestReturnStdDev:     stdDev(testReturns),
		AverageTrainDrawdown: average(trainDD),
		AverageTestDrawdown:  average(testDD),
		ReturnDegradation:    degradation,
		IsRobust:             degradation <= 0.30,
		OverfittingRisk:      risk,
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	avg := average(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(len(values)-1))
}
