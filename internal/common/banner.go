package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the dashboard startup banner.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	version := GetVersion()
	dashboardURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n\n", hr)
	fmt.Fprintf(w, "%s  SURVEYLENS%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s  Survey analysis dashboards and reports%s\n\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s\n\n", hr)

	kvPad := 14
	kvLines := [][2]string{
		{"Version", version},
		{"Environment", config.Environment},
		{"Dashboard", dashboardURL},
		{"Backend", config.API.BaseURL},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", version).
		Str("environment", config.Environment).
		Str("dashboard_url", dashboardURL).
		Str("backend", config.API.BaseURL).
		Msg("Dashboard started")
}

// PrintShutdownBanner displays the shutdown banner.
func PrintShutdownBanner(w io.Writer, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 42) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n", hr)
	fmt.Fprintf(w, "%s  SURVEYLENS  SHUTTING DOWN%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s\n\n", hr)

	logger.Info().Msg("Dashboard shutting down")
}
