package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the log file path for one server session, for example
// logs/s2awh.de_mirage.20260212_213836.log. An empty map name is omitted.
func LogFilePath(logsDir, serviceName, mapName string, sessionStart time.Time) string {
	name := serviceName
	if mapName != "" {
		name += "." + mapName
	}
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
