package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("RETIRO_TEST_MODE") == "" {
			_ = os.Setenv("RETIRO_TEST_MODE", "1")
		}
	})
}
