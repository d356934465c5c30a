package log

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/huskar-t/file-rotatelogs/v2"
	"github.com/sirupsen/logrus"
	"github.com/taosdata/go-utils/log"
)

var Logger = log.NewLogger("bouncerKeeper")

// the logrus logger shared by every go-utils module logger
var logger = Logger.WithFields(nil).Logger

func init() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
}

// SetLevel accepts any logrus level name.
func SetLevel(level string) error {
	if _, err := logrus.ParseLevel(level); err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

// ConfigLog redirects the log to a rotated file under path. An empty path keeps logging on stderr,
// stdout is reserved for metric lines.
func ConfigLog(path string, rotationCount uint, rotationTime time.Duration, rotationSize uint) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create log dir %s: %w", path, err)
	}
	writer, err := rotatelogs.New(
		filepath.Join(path, "bouncerkeeper_%Y_%m_%d_%H_%M.log"),
		rotatelogs.WithRotationCount(rotationCount),
		rotatelogs.WithRotationTime(rotationTime),
		rotatelogs.WithRotationSize(int64(rotationSize)),
	)
	if err != nil {
		return fmt.Errorf("init rotate log: %w", err)
	}
	logger.SetOutput(writer)
	return nil
}

func IsDebug() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}

func GetLogger(model string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"model": model})
}
