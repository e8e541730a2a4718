package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use it when a synthesis stream is abandoned half way so the producing
// goroutine can finish.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
