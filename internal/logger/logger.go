package logger

import (
	stdlog "log"

	"go.uber.org/zap"
)

var Log *zap.Logger

func Init() {
	var err error
	Log, err = zap.NewProduction()
	if err != nil {
		stdlog.Fatalf("Cannot create logger: %v", err)
	}
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
