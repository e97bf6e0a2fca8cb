package config

import "os"

func IsDebug() bool {
	return os.Getenv("MOMENTUM_DEBUG") == "1"
}
