// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package testutil provides random-data generators shared across this
// module's package tests.
package testutil

import (
	"fmt"
	"math/rand"
	"time"
)

// fixedRandSeed is used by GenPredictableRandomData so that tests that
// need byte-for-byte reproducible fixtures across runs can rely on it.
const fixedRandSeed = 0x1234

var randSource rand.Source

func init() {
	randSeed := time.Now().UnixNano()
	fmt.Printf("rand seed for GenReproducibleRandomData: %v\n", randSeed)
	randSource = rand.NewSource(randSeed)
}

// GenPredictableRandomData generates random data from a fixed, known
// seed: two calls with the same size always return the same bytes.
func GenPredictableRandomData(size int) []byte {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// GenReproducibleRandomData uses the random seed printed by this
// package's init function, so a failing test run can be reproduced by
// hand with that seed if needed.
func GenReproducibleRandomData(size int) []byte {
	gen := rand.New(randSource)
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// FirstN returns at most the first n bytes of b.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
