package transfer

import (
	"os"
)

// SizeMatches reports whether a regular file already exists at path with
// exactly the expected size. It is the advisory cache check used before a
// transfer: same size is not the same as same content, so callers treating
// this as a correctness guarantee are on their own.
func SizeMatches(path string, size int64) bool {
	if size < 0 {
		return false
	}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return false
	}
	return st.Size() == size
}
