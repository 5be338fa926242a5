package hubness

import (
	"runtime"
	"strconv"

	"golang.org/x/sys/cpu"
)

// platformProbe reports whether an approximate algorithm can run here.
// Tests replace it to simulate other platforms.
var platformProbe = probePlatform

func probePlatform(algo Algorithm) bool {
	switch algo {
	case AlgorithmHNSW:
		return true
	case AlgorithmLSH:
		return hasPopcount()
	case AlgorithmFalconnLSH:
		return runtime.GOOS != "windows" && strconv.IntSize == 64
	}
	return false
}

// hasPopcount reports whether the CPU counts bits in hardware, which the
// Hamming-distance fallback of the lsh backend leans on.
func hasPopcount() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasPOPCNT
	case "arm64", "ppc64le", "s390x":
		return true
	}
	return false
}

func algorithmAvailable(algo Algorithm) bool {
	return platformProbe(algo)
}

// AvailableApproximateAlgorithms lists the approximate algorithms that can run
// on this platform, in the order of ApproximateAlgorithms.
func AvailableApproximateAlgorithms() []Algorithm {
	var out []Algorithm
	for _, a := range ApproximateAlgorithms {
		if algorithmAvailable(a) {
			out = append(out, a)
		}
	}
	return out
}
