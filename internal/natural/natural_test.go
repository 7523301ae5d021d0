// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package natural_test

import (
	"sort"
	"testing"

	"github.com/cosnicolaou/pzip/internal/natural"
)

func TestLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"file2", "file10", true},
		{"file10", "file2", false},
		{"file2", "file2", false},
		{"a", "b", true},
		{"b", "a", false},
		{"file", "file2", true},
		{"file2", "file", false},
		{"", "", false},
		{"", "a", true},
		{"abc10def", "abc9def", false},
		{"abc09", "abc9", false},
		// Quirk inherited from original_source/src/naturalorder.h's
		// tryint: when a digit run is cut short by running off the end
		// of the string, next_char is the *last digit consumed*, not a
		// sentinel. So comparing it against the other side's
		// terminating character can flip what looks like the
		// "intuitive" order once the numeric values are equal.
		{"9", "9-", false},
		{"img9", "img9-thumb", false},
	}
	for _, c := range cases {
		if got := natural.Less(c.a, c.b); got != c.want {
			t.Errorf("Less(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSort(t *testing.T) {
	in := []string{"file10.txt", "file2.txt", "file1.txt", "file20.txt"}
	want := []string{"file1.txt", "file2.txt", "file10.txt", "file20.txt"}
	sort.Slice(in, func(i, j int) bool { return natural.Less(in[i], in[j]) })
	for i := range in {
		if in[i] != want[i] {
			t.Errorf("sort mismatch at %d: got %v, want %v", i, in, want)
			break
		}
	}
}
