package exitlib

import "os"

func main() {
	os.Exit(1)
}

// Stop завершает процесс.
func Stop() {
	os.Exit(0)
}
