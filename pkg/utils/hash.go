package utils

import (
	"crypto/md5"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// DocumentID derives a stable identifier for a document from its path.
func DocumentID(path string) string {
	return HashString(path)
}
