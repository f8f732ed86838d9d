package workerpool

import "time"

// busyWaitNs spins until delayNs nanoseconds have elapsed, modeling the
// source's cycle-counter busy-wait (thread_spinloop) without a syscall in
// the loop — time.Now() reads the monotonic clock directly rather than
// trapping into the kernel on every platform Go supports.
func busyWaitNs(delayNs int64) {
	if delayNs <= 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(delayNs) * time.Nanosecond)
	for time.Now().Before(deadline) {
	}
}
