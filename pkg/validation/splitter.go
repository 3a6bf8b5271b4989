package validation

import "time"

// DefaultDaySplitter implements the DaySplitter interface
type DefaultDaySplitter struct{}

// NewDefaultDaySplitter creates a new default splitter
func NewDefaultDaySplitter() *DefaultDaySplitter {
	return &DefaultDaySplitter{}
}

// SplitByRatio splits the calendar into train/test by ratio
func (s *DefaultDaySplitter) SplitByRatio(days []time.Time, ratio float64) ([]time.Time, []time.Time) {
	if ratio <= 0 || ratio >= 1 {
		return days, nil
	}

	n := int(float64(len(days)) * ratio)
	if n < 1 || n >= len(days) {
		return days, nil
	}

	return days[:n], days[n:]
}

// CreateRollingFolds creates rolling walk-forward folds counted in trading
// days. Folds shorter than the configured minimums end the sequence.
func (s *DefaultDaySplitter) CreateRollingFolds(days []time.Time, cfg WalkForwardConfig) []WalkForwardFold {
	var folds []WalkForwardFold
	if cfg.TrainDays <= 0 || cfg.TestDays <= 0 {
		return folds
	}
	roll := cfg.RollDays
	if roll <= 0 {
		roll = cfg.TestDays
	}

	for start := 0; start < len(days); start += roll {
		trainEnd := min(start+cfg.TrainDays, len(days))
		testEnd := min(trainEnd+cfg.TestDays, len(days))

		if trainEnd-start < cfg.MinTrainDays || testEnd-trainEnd < max(cfg.MinTestDays, 1) {
			break
		}

		folds = append(folds, WalkForwardFold{
			Index:      len(folds) + 1,
			Train:      days[start:trainEnd],
			Test:       days[trainEnd:testEnd],
			TrainStart: days[start],
			TrainEnd:   days[trainEnd-1],
			TestStart:  days[trainEnd],
			TestEnd:    days[testEnd-1],
		})

		if testEnd == len(days) {
			break
		}
	}

	return folds
}

// Folds returns rolling folds, or a single holdout fold when cfg is not
// rolling
func Folds(days []time.Time, cfg WalkForwardConfig) []WalkForwardFold {
	splitter := NewDefaultDaySplitter()
	if cfg.Rolling {
		return splitter.CreateRollingFolds(days, cfg)
	}
	train, test := splitter.SplitByRatio(days, cfg.SplitRatio)
	if len(train) == 0 || len(test) == 0 {
		return nil
	}
	return []WalkForwardFold{{
		Index:      1,
		Train:      train,
		Test:       test,
		TrainStart: train[0],
		TrainEnd:   train[len(train)-1],
		TestStart:  test[0],
		TestEnd:    test[len(test)-1],
	}}
}

// SplitByRatio is a convenience function that uses the default splitter
func SplitByRatio(days []time.Time, ratio float64) ([]time.Time, []time.Time) {
	return NewDefaultDaySplitter().SplitByRatio(days, ratio)
}

// CreateRollingFolds is a convenience function that uses the default splitter
func CreateRollingFolds(days []time.Time, cfg WalkForwardConfig) []WalkForwardFold {
	return NewDefaultDaySplitter().CreateRollingFolds(days, cfg)
}
