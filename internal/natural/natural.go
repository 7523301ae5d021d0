// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package natural implements natural-order string comparison: runs of
// decimal digits compare by numeric value rather than byte value, so
// "file2" sorts before "file10".
package natural

// tryInt consumes a run of decimal digits starting at s[pos]. On
// return, pos has been advanced past the digit run and, if the run was
// terminated by a non-digit character, past that character too (it is
// returned as nextChar, hasNext=true). If the digit run ran to the end
// of the string, hasNext is false, pos == len(s), and nextChar is the
// last digit consumed, matching original_source/src/naturalorder.h's
// tryint, whose next_char is simply the last character read by its
// loop regardless of why the loop stopped.
func tryInt(s string, pos int) (wasNum bool, value, newPos int, nextChar byte, hasNext bool) {
	newPos = pos
	for newPos < len(s) {
		c := s[newPos]
		newPos++
		nextChar = c
		if c >= '0' && c <= '9' {
			wasNum = true
			value = value*10 + int(c-'0')
			continue
		}
		return wasNum, value, newPos, c, true
	}
	return wasNum, value, newPos, nextChar, false
}

// Compare returns -1, 0, or 1 according to whether a sorts before,
// equal to, or after b in natural order: embedded digit runs compare
// numerically rather than byte-by-byte.
func Compare(a, b string) int {
	i, j := 0, 0
	for {
		if i >= len(a) {
			if j < len(b) {
				return -1
			}
			return 0
		}
		if j >= len(b) {
			return 1
		}
		aWasNum, aVal, aNext, aChar, _ := tryInt(a, i)
		bWasNum, bVal, bNext, bChar, _ := tryInt(b, j)
		switch {
		case aWasNum && bWasNum:
			if aVal < bVal {
				return -1
			}
			if aVal > bVal {
				return 1
			}
		case aWasNum && !bWasNum:
			if bChar < '0' {
				return -1
			}
			return 1
		case !aWasNum && bWasNum:
			if aChar < '0' {
				return -1
			}
			return 1
		}
		if aChar < bChar {
			return -1
		}
		if aChar > bChar {
			return 1
		}
		i, j = aNext, bNext
	}
}

// Less reports whether a sorts before b in natural order.
func Less(a, b string) bool { return Compare(a, b) < 0 }
