// Command schedwidget hosts lesson-schedule widgets: it keeps per-instance
// settings, refreshes instances from ICS timetables and serves them over
// HTTP and in the terminal.
package main

import (
	"os"

	appLog "schedwidget/internal/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("schedwidget failed", err)
		os.Exit(1)
	}
}
