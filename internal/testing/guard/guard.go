package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("EXPENSA_TEST_MODE") == "" {
			_ = os.Setenv("EXPENSA_TEST_MODE", "1")
		}
	})
}
