package timer

import (
	"fmt"
	"time"
)

// Example of pairing a timer with defer so the timing code sits together at
// the top of the function being measured.
func Example() {
	defer func(t Timer) {
		dur := t.Finish()
		fmt.Printf("handler took %gms\n", dur)
	}(Start())
}

// Example_block for timing a stretch of code rather than a whole function.
func Example_block() {
	t := Start()
	// the work being measured happens here
	dur := t.Finish()
	fmt.Printf("query took %gms\n", dur)
}

// Example_otherTime for when the interval began before we got to see it,
// such as a timestamp pulled off a queued message.
func Example_otherTime() {
	enqueued := time.Unix(1525150486, 0)
	t := New(enqueued)
	dur := t.Finish()
	fmt.Printf("spent %gms in the queue\n", dur)
}
