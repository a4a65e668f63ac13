package server

import (
	"fmt"
	"os"
)

// permString renders mode as a ten character ls style string: the entry
// type followed by the nine permission bits.
func permString(mode os.FileMode) string {
	b := []byte("-rwxrwxrwx")
	if mode.IsDir() {
		b[0] = 'd'
	}
	perm := mode.Perm()
	for i := 0; i < 9; i++ {
		if perm&(1<<uint(8-i)) == 0 {
			b[i+1] = '-'
		}
	}
	return string(b)
}

// formatListLine renders one LIST entry. Link count, owner and group are
// fixed placeholders.
func formatListLine(info os.FileInfo) string {
	return fmt.Sprintf("%s 1 owner group %d %s %s\r\n",
		permString(info.Mode()), info.Size(), info.ModTime().Format("Jan 02 15:04"), info.Name())
}

// formatNameLine renders one NLST entry.
func formatNameLine(info os.FileInfo) string {
	return info.Name() + "\r\n"
}
