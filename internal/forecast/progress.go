package forecast

// ProgressObserver receives training lifecycle events. Implementations must
// be safe to call from the training goroutine; slow observers slow training.
type ProgressObserver interface {
	// TrainingStarted fires once, before any model is trained.
	TrainingStarted(targets []string, quantiles []float64)
	// CVStarted fires before cross-validation of one (target, quantile) model.
	CVStarted(target string, quantile float64)
	// CVFinished fires after cross-validation, with the selected round and
	// its held-out loss.
	CVFinished(target string, quantile float64, bestRound int, bestScore float64)
}

// NopObserver ignores all events
type NopObserver struct{}

func (NopObserver) TrainingStarted([]string, []float64)      {}
func (NopObserver) CVStarted(string, float64)                {}
func (NopObserver) CVFinished(string, float64, int, float64) {}
