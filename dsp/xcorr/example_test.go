package xcorr_test

import (
	"fmt"
	"log"

	"github.com/plasmadsp/rfea/dsp/xcorr"
)

func ExampleEstimateLag() {
	ref := []float64{0, 0, 1, 2, 1, 0, 0, 0, 0, 0}
	sig := xcorr.Roll(ref, 4) // same pulse, four samples later

	lag, err := xcorr.EstimateLag(ref, sig, 0.7)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(lag.Offset, lag.Valid)

	// Undo the detected delay.
	aligned := xcorr.Roll(sig, -lag.Offset)
	fmt.Println(aligned)
	// Output:
	// 4 true
	// [0 0 1 2 1 0 0 0 0 0]
}

func ExampleRoll() {
	x := []float64{1, 2, 3, 4, 5}
	fmt.Println(xcorr.Roll(x, 2))
	fmt.Println(xcorr.Roll(x, -2))
	// Output:
	// [4 5 1 2 3]
	// [3 4 5 1 2]
}
