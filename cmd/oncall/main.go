package main

import (
	"context"
	"fmt"
	"os"
	"pagerduty-tools/cmd/oncall/commands"
	"pagerduty-tools/internal/components/telemetry"
	"pagerduty-tools/lib/osutil"
	libtelemetry "pagerduty-tools/lib/telemetry"
)

func main() {
	ctx, stop := osutil.SignalContext(context.Background())

	otel, err := libtelemetry.SetupFromEnv(ctx, "oncall")
	if err != nil {
		telemetry.SlogAPI{}.ReportWarning("telemetry.setup", err)
	}

	err = commands.ExecuteContext(ctx)

	otel.Shutdown(context.Background())
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
