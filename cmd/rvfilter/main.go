package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	_ "net/http/pprof" // profiling

	"rvfilter/internal/logging"
	"rvfilter/internal/rvfilter/cmd"
	"rvfilter/internal/rvfilter/log"
)

func main() {
	os.Exit(run())
}

// run wraps the command so a panic is logged and turned into exit status 2
// while deferred cleanup still runs.
func run() (code int) {
	log.Setup(os.Stderr, logging.IsDebug())
	defer log.RecoverPanic("main", func() {
		slog.Error("rvfilter terminated due to unhandled panic")
		code = 2
	})

	if addr := os.Getenv("RVFILTER_PROFILE"); addr != "" {
		if !strings.Contains(addr, ":") {
			addr = "localhost:6060"
		}
		go func() {
			slog.Info("Serving pprof", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				slog.Error("Failed to pprof listen", "error", err)
			}
		}()
	}

	return cmd.Execute()
}
